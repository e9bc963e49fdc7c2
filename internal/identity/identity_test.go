package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddlewareAndRequire(t *testing.T) {
	var seen string
	handler := Middleware(Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser string
	}{
		{"valid user", "alice", http.StatusNoContent, "alice"},
		{"email style", "bob@example.com", http.StatusNoContent, "bob@example.com"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"malformed", "eve; DROP TABLE", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
			if tt.header != "" {
				req.Header.Set(HeaderUserID, tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}
