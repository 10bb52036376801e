package auth

import (
	"encoding/json"
	"net/http"
)

// Header names populated by the identity gateway in front of this service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
	HeaderBarangay = "X-Barangay-Id"
)

// Middleware builds the Principal from gateway headers. Requests without a
// usable identity are rejected before they reach any handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			ID:         r.Header.Get(HeaderUserID),
			Role:       Role(r.Header.Get(HeaderUserRole)),
			BarangayID: r.Header.Get(HeaderBarangay),
		}
		if p.ID == "" || !p.Role.Valid() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing or invalid identity"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
