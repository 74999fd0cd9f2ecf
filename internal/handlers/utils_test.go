package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractUUIDFromPath(t *testing.T) {
	id := "123e4567-e89b-12d3-a456-426614174000"
	parsed, err := extractUUIDFromPath("/api/coupons/"+id+"/redeem", "/api/coupons/")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.String() != id {
		t.Fatalf("unexpected id: %s", parsed)
	}

	if _, err := extractUUIDFromPath("/wrong/path", "/api/coupons/"); err == nil {
		t.Fatalf("expected error for invalid path")
	}
	if _, err := extractUUIDFromPath("/api/coupons/not-a-uuid", "/api/coupons/"); err == nil {
		t.Fatalf("expected error for malformed uuid")
	}
}

func TestWriteJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, map[string]string{"ok": "true"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if body := rr.Body.String(); body == "" {
		t.Fatalf("empty body")
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/offers?limit=25&offset=10", nil)
	limit, offset := parsePagination(req)
	if limit != 25 || offset != 10 {
		t.Fatalf("expected limit=25 offset=10, got %d/%d", limit, offset)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/offers?limit=9999&offset=-1", nil)
	limit, offset = parsePagination(req)
	if limit != 50 || offset != 0 {
		t.Fatalf("out-of-range values must fall back to defaults, got %d/%d", limit, offset)
	}
}
