package profile

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"social-canvas/core"
	"social-canvas/middleware"
)

// Syncer mirrors the identity provider's user record into the backend.
type Syncer interface {
	SyncProfile(ctx context.Context, p core.Profile) error
}

// HandleSync upserts the signed-in user's profile row. The id always comes
// from the token subject, never from the body.
func HandleSync(svc Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var p core.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid profile body"})
			return
		}
		p.ID = claims.Subject

		if err := svc.SyncProfile(r.Context(), p); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": p.ID,
			}).Error("Failed to sync profile")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to sync profile"})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "synced"})
	}
}
