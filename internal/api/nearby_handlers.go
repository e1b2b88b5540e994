package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/karibapp/karib/internal/geo"
	"github.com/karibapp/karib/internal/middleware"
	"github.com/karibapp/karib/internal/nearby"
	"github.com/karibapp/karib/internal/place"
	"github.com/karibapp/karib/internal/points"
)

// ledgerTimeout bounds the points balance lookup preceding a search.
const ledgerTimeout = 3 * time.Second

// NearbyHandlers holds dependencies for the nearby search endpoint.
type NearbyHandlers struct {
	service *nearby.Service
	ledger  points.Ledger
	metrics *middleware.Metrics
}

// NewNearbyHandlers creates a NearbyHandlers instance. metrics may be nil in
// tests.
func NewNearbyHandlers(service *nearby.Service, ledger points.Ledger, metrics *middleware.Metrics) *NearbyHandlers {
	return &NearbyHandlers{
		service: service,
		ledger:  ledger,
		metrics: metrics,
	}
}

// NearbyPlaceResult is one search hit. Distance is rounded to whole meters;
// sub-meter precision is noise at city scale.
type NearbyPlaceResult struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Category       place.Category `json:"category"`
	Description    string         `json:"description,omitempty"`
	Address        string         `json:"address,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Lat            float64        `json:"latitude"`
	Lng            float64        `json:"longitude"`
	DistanceMeters int            `json:"distance"`
	Rating         float64        `json:"rating"`
	ReviewCount    int            `json:"reviewCount"`
	PriceLevel     int            `json:"priceLevel,omitempty"`
	IsOpen         bool           `json:"isOpen"`
	Tags           []string       `json:"tags,omitempty"`
	Photos         []string       `json:"photos,omitempty"`
}

// Nearby handles GET /places/nearby.
//
// Query parameters: lat and lng (required), radius in meters (default 1000),
// category, open, limit (default 20), offset (default 0). The searched
// radius is capped at the tier unlocked by the caller's points balance;
// anonymous callers get the base tier.
func (h *NearbyHandlers) Nearby(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	lat, err := parseFloatParam(query.Get("lat"))
	if err != nil {
		writeFieldError(w, r, "lat", "must be a number")
		return
	}
	lng, err := parseFloatParam(query.Get("lng"))
	if err != nil {
		writeFieldError(w, r, "lng", "must be a number")
		return
	}

	radiusMeters := nearby.DefaultRadiusMeters
	if raw := query.Get("radius"); raw != "" {
		radiusMeters, err = parseFloatParam(raw)
		if err != nil {
			writeFieldError(w, r, "radius", "must be a number")
			return
		}
	}

	limit := nearby.DefaultLimit
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeFieldError(w, r, "limit", "must be an integer")
			return
		}
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil {
			writeFieldError(w, r, "offset", "must be an integer")
			return
		}
	}

	var filters struct {
		category *place.Category
		openOnly bool
	}
	if raw := query.Get("category"); raw != "" {
		cat, err := place.ParseCategory(raw)
		if err != nil {
			writeFieldError(w, r, "category", "must be one of: food, health, vet, admin")
			return
		}
		filters.category = &cat
	}
	if raw := query.Get("open"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			writeFieldError(w, r, "open", "must be a boolean")
			return
		}
		filters.openOnly = open
	}

	userPoints, ok := h.resolvePoints(w, r)
	if !ok {
		return
	}

	q := nearby.SearchQuery{
		Origin:       geo.Coordinate{Lat: lat, Lng: lng},
		RadiusMeters: radiusMeters,
		Category:     filters.category,
		OpenOnly:     filters.openOnly,
		Limit:        limit,
		Offset:       offset,
	}

	page, err := h.service.Query(r.Context(), q, userPoints)
	if err != nil {
		var vErr *nearby.ValidationError
		if errors.As(err, &vErr) {
			h.observe("validation_error", false, 0)
			WriteErrorWithDetails(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
				"Invalid search query", map[string]any{vErr.Field: vErr.Message})
			return
		}

		var dErr *nearby.DependencyError
		if errors.As(err, &dErr) {
			h.observe("dependency_error", false, 0)
			WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeDependencyUnavailable,
				"Place search is temporarily unavailable")
			return
		}

		h.observe("internal_error", false, 0)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	h.observe("ok", page.EffectiveRadius < math.Min(radiusMeters, nearby.MaxRadiusMeters), page.Total)

	results := make([]NearbyPlaceResult, 0, len(page.Results))
	for _, rp := range page.Results {
		results = append(results, toNearbyResult(rp))
	}

	WriteSuccess(w, r.Context(), http.StatusOK, results, PageMeta{
		Total:                 page.Total,
		Limit:                 page.Limit,
		Offset:                page.Offset,
		EffectiveRadiusMeters: page.EffectiveRadius,
	})
}

// resolvePoints looks up the caller's points balance. Anonymous callers are
// tier zero. A ledger outage is a dependency failure: guessing a balance
// could leak a radius the user has not unlocked.
func (h *NearbyHandlers) resolvePoints(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return 0, true
	}

	ctx, cancel := context.WithTimeout(r.Context(), ledgerTimeout)
	defer cancel()

	total, err := h.ledger.Total(ctx, userID)
	if err != nil {
		h.observe("dependency_error", false, 0)
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeDependencyUnavailable,
			"Points lookup is temporarily unavailable")
		return 0, false
	}
	return total, true
}

func (h *NearbyHandlers) observe(outcome string, clamped bool, total int) {
	if h.metrics != nil {
		h.metrics.ObserveNearbyQuery(outcome, clamped, total)
	}
}

func toNearbyResult(rp nearby.RankedPlace) NearbyPlaceResult {
	return NearbyPlaceResult{
		ID:             rp.ID,
		Name:           rp.Name,
		Category:       rp.Category,
		Description:    rp.Description,
		Address:        rp.Address,
		Phone:          rp.Phone,
		Lat:            rp.Lat,
		Lng:            rp.Lng,
		IsOpen:         rp.IsOpen,
		Rating:         rp.Rating,
		ReviewCount:    rp.ReviewCount,
		PriceLevel:     rp.PriceLevel,
		Tags:           rp.Tags,
		Photos:         rp.Photos,
		DistanceMeters: int(math.Round(rp.DistanceMeters)),
	}
}

func parseFloatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("missing")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	// ParseFloat accepts "NaN" and "Inf"; neither is a usable coordinate
	// or radius.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not finite")
	}
	return v, nil
}

func writeFieldError(w http.ResponseWriter, r *http.Request, field, message string) {
	WriteErrorWithDetails(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
		"Invalid search query", map[string]any{field: message})
}

