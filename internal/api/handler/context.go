package handler

import (
	"net/http"

	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/api/response"
	"github.com/aidtracker/aidtracker/internal/auth"
)

// identity returns the caller verified by the guard. It writes a 401 and
// returns nil when the route was mounted without one.
func identity(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := middleware.GetIdentity(r.Context())
	if id == nil {
		response.Unauthorized(w, r, "authentication token is required")
	}
	return id
}
