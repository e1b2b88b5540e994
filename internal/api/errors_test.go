package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)

	WriteError(rec, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Place not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Success {
		t.Error("success = true in error envelope")
	}
	if resp.Message != "Place not found" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Details != nil {
		t.Errorf("details = %v, want omitted", resp.Details)
	}
}

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)

	WriteErrorWithDetails(rec, r.Context(), http.StatusBadRequest, ErrCodeValidation,
		"Invalid search query", map[string]any{"lat": "must be within [-90, 90]"})

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Details["lat"] != "must be within [-90, 90]" {
		t.Errorf("details[lat] = %v", resp.Details["lat"])
	}
}

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)

	WriteSuccess(rec, r.Context(), http.StatusOK, []string{"a", "b"}, PageMeta{Total: 2, Limit: 20})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
		Meta    PageMeta `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !resp.Success {
		t.Error("success = false in success envelope")
	}
	if len(resp.Data) != 2 {
		t.Errorf("data = %v", resp.Data)
	}
	if resp.Meta.Total != 2 {
		t.Errorf("meta.total = %d, want 2", resp.Meta.Total)
	}
}
