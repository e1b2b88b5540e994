package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/karibapp/karib/internal/middleware"
	"github.com/karibapp/karib/internal/place"
	"github.com/karibapp/karib/internal/points"
	"github.com/karibapp/karib/internal/validate"
)

// SubmitPlaceRequest is the request body for ambassador place submissions.
type SubmitPlaceRequest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Lat         float64  `json:"latitude"`
	Lng         float64  `json:"longitude"`
	IsOpen      bool     `json:"is_open"`
	PriceLevel  int      `json:"price_level,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Photos      []string `json:"photos,omitempty"`
}

// PlaceHandlers holds dependencies for place CRUD handlers.
type PlaceHandlers struct {
	repo   place.Repository
	ledger points.Ledger
	logger *slog.Logger
}

// NewPlaceHandlers creates a PlaceHandlers instance.
func NewPlaceHandlers(repo place.Repository, ledger points.Ledger, logger *slog.Logger) *PlaceHandlers {
	return &PlaceHandlers{
		repo:   repo,
		ledger: ledger,
		logger: logger,
	}
}

func placeNameError(err error) string {
	switch {
	case errors.Is(err, validate.ErrEmpty), errors.Is(err, validate.ErrStringTooShort):
		return "name must be at least 2 characters"
	case errors.Is(err, validate.ErrStringTooLong):
		return "name must not exceed 120 characters"
	default:
		return "name contains invalid characters"
	}
}

// Submit handles POST /places. Submissions enter unverified and stay out of
// search results until a moderator verifies them. The submitter earns points
// immediately; a double-submit costs a moderator a click, a withheld award
// costs an ambassador trust.
func (h *PlaceHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req SubmitPlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	name, err := validate.PlaceName(req.Name)
	if err != nil {
		WriteErrorWithDetails(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
			"Invalid place submission", map[string]any{"name": placeNameError(err)})
		return
	}

	category, err := place.ParseCategory(req.Category)
	if err != nil {
		WriteErrorWithDetails(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
			"Invalid place submission", map[string]any{"category": "must be one of: food, health, vet, admin"})
		return
	}

	p := &place.Place{
		Name:        name,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		Lat:         req.Lat,
		Lng:         req.Lng,
		IsOpen:      req.IsOpen,
		PriceLevel:  req.PriceLevel,
		Tags:        req.Tags,
		Photos:      req.Photos,
		SubmittedBy: userID,
		Verified:    false,
	}

	if err := p.Validate(); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := h.repo.Insert(r.Context(), p); err != nil {
		h.logger.Error("place insert failed", "error", err)
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeDependencyUnavailable,
			"Place submission is temporarily unavailable")
		return
	}

	amount, _ := points.AmountFor(points.ReasonPlaceSubmitted)
	if err := h.ledger.Award(r.Context(), userID, amount, points.ReasonPlaceSubmitted); err != nil {
		// The place is saved; losing the award is logged, not surfaced.
		h.logger.Error("points award failed after place submission",
			"user_id", userID, "place_id", p.ID, "error", err)
	}

	WriteSuccess(w, r.Context(), http.StatusCreated, p, nil)
}

// GetByID handles GET /places/{id}.
func (h *PlaceHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/places/"), "/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Place not found")
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, place.ErrNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Place not found")
			return
		}
		h.logger.Error("place lookup failed", "place_id", id, "error", err)
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeDependencyUnavailable,
			"Place lookup is temporarily unavailable")
		return
	}

	WriteSuccess(w, r.Context(), http.StatusOK, p, nil)
}
