package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/karibapp/karib/internal/middleware"
	"github.com/karibapp/karib/internal/place"
	"github.com/karibapp/karib/internal/points"
)

func newPlaceFixture(t *testing.T) (*PlaceHandlers, *place.InMemoryRepository, *points.InMemoryLedger) {
	t.Helper()
	repo := place.NewInMemoryRepository()
	ledger := points.NewInMemoryLedger()
	logger := slog.New(slog.DiscardHandler)
	return NewPlaceHandlers(repo, ledger, logger), repo, ledger
}

func TestSubmit_CreatesUnverifiedPlaceAndAwardsPoints(t *testing.T) {
	handlers, repo, ledger := newPlaceFixture(t)

	body := `{
		"name": "Snack Bab Marrakech",
		"category": "food",
		"latitude": 33.5919,
		"longitude": -7.6186,
		"is_open": true,
		"tags": ["msemen", "cheap"]
	}`
	r := httptest.NewRequest(http.MethodPost, "/places", strings.NewReader(body))
	r = r.WithContext(middleware.SetUserID(r.Context(), "amb-7"))
	rec := httptest.NewRecorder()
	handlers.Submit(rec, r)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool        `json:"success"`
		Data    place.Place `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Data.ID == "" {
		t.Error("created place has no ID")
	}
	if resp.Data.Verified {
		t.Error("submission should enter unverified")
	}
	if resp.Data.SubmittedBy != "amb-7" {
		t.Errorf("submitted_by = %q, want amb-7", resp.Data.SubmittedBy)
	}

	stored, err := repo.GetByID(context.Background(), resp.Data.ID)
	if err != nil {
		t.Fatalf("stored place not found: %v", err)
	}
	if stored.Name != "Snack Bab Marrakech" {
		t.Errorf("stored name = %q", stored.Name)
	}

	total, err := ledger.Total(context.Background(), "amb-7")
	if err != nil {
		t.Fatalf("ledger total: %v", err)
	}
	want, _ := points.AmountFor(points.ReasonPlaceSubmitted)
	if total != want {
		t.Errorf("points total = %d, want %d", total, want)
	}
}

func TestSubmit_RequiresAuth(t *testing.T) {
	handlers, _, _ := newPlaceFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/places", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handlers.Submit(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSubmit_Validation(t *testing.T) {
	handlers, _, ledger := newPlaceFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"name too short", `{"name":"X","category":"food","latitude":33.57,"longitude":-7.59}`},
		{"unknown category", `{"name":"Chez Ali","category":"nightclub","latitude":33.57,"longitude":-7.59}`},
		{"latitude out of range", `{"name":"Chez Ali","category":"food","latitude":95,"longitude":-7.59}`},
		{"price level out of range", `{"name":"Chez Ali","category":"food","latitude":33.57,"longitude":-7.59,"price_level":9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/places", strings.NewReader(tt.body))
			r = r.WithContext(middleware.SetUserID(r.Context(), "amb-7"))
			rec := httptest.NewRecorder()
			handlers.Submit(rec, r)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
			}
		})
	}

	// No award for rejected submissions.
	if total, _ := ledger.Total(context.Background(), "amb-7"); total != 0 {
		t.Errorf("points total = %d, want 0 after rejected submissions", total)
	}
}

func TestSubmit_SanitizesName(t *testing.T) {
	handlers, _, _ := newPlaceFixture(t)

	body := `{"name":"  Cafe de l'Ocean  ","category":"food","latitude":33.57,"longitude":-7.59}`
	r := httptest.NewRequest(http.MethodPost, "/places", strings.NewReader(body))
	r = r.WithContext(middleware.SetUserID(r.Context(), "amb-7"))
	rec := httptest.NewRecorder()
	handlers.Submit(rec, r)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data place.Place `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Data.Name != "Cafe de l&#39;Ocean" {
		t.Errorf("name = %q, want trimmed and HTML-escaped", resp.Data.Name)
	}
}

func TestSubmit_PlaceSavedEvenWhenAwardFails(t *testing.T) {
	repo := place.NewInMemoryRepository()
	handlers := NewPlaceHandlers(repo, failingLedger{}, slog.New(slog.DiscardHandler))

	body := `{"name":"Pharmacie du Port","category":"health","latitude":33.60,"longitude":-7.61}`
	r := httptest.NewRequest(http.MethodPost, "/places", strings.NewReader(body))
	r = r.WithContext(middleware.SetUserID(r.Context(), "amb-7"))
	rec := httptest.NewRecorder()
	handlers.Submit(rec, r)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 even when the award fails", rec.Code)
	}
}

func TestGetByID(t *testing.T) {
	handlers, repo, _ := newPlaceFixture(t)

	p := &place.Place{
		Name:     "Vet Anfa",
		Category: place.CategoryVet,
		Lat:      33.58,
		Lng:      -7.64,
		Verified: true,
	}
	if err := repo.Insert(context.Background(), p); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/places/"+p.ID, nil)
	rec := httptest.NewRecorder()
	handlers.GetByID(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool        `json:"success"`
		Data    place.Place `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Data.ID != p.ID || resp.Data.Name != "Vet Anfa" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	handlers, _, _ := newPlaceFixture(t)

	tests := []string{
		"/places/00000000-0000-0000-0000-000000000000",
		"/places/",
		"/places/abc/extra",
	}

	for _, url := range tests {
		r := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		handlers.GetByID(rec, r)

		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", url, rec.Code)
		}
	}
}
