package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthAndLive(t *testing.T) {
	h := NewHandler()

	for path, fn := range map[string]http.HandlerFunc{"/health": h.Health, "/health/live": h.Live} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
		},
		{
			name:       "all healthy",
			checkers:   []Checker{NewStorageChecker(fakePinger{}), NewCacheChecker(fakePinger{})},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"storage": "ok", "cache": "ok"},
		},
		{
			name:       "cache down",
			checkers:   []Checker{NewStorageChecker(fakePinger{}), NewCacheChecker(fakePinger{err: errors.New("connection refused")})},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"storage": "ok", "cache": "connection refused"},
		},
		{
			name:       "not configured",
			checkers:   []Checker{NewStorageChecker(nil)},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"storage": "storage not configured"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler()
			for _, c := range tc.checkers {
				h.RegisterChecker(c)
			}

			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest("GET", "/health/ready", nil))
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for name, want := range tc.wantChecks {
				if got := resp.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}
