package session

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"social-canvas/auth"
	"social-canvas/core"
)

// ProfileSyncer mirrors the signed-in user into the backend's users table.
type ProfileSyncer interface {
	SyncProfile(ctx context.Context, p core.Profile) error
}

// HandleSignIn marks the user signed-in: the token refresh loop starts, a
// first token is minted, and the user's profile is mirrored to the backend.
func HandleSignIn(supplier *auth.Supplier, syncer ProfileSyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p core.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid profile body"})
			return
		}

		supplier.Start(r.Context())

		token := supplier.GetToken(r.Context())
		if token == "" {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Could not obtain a session token"})
			return
		}

		if p.ID == "" {
			if claims, err := auth.InspectToken(token); err == nil {
				p.ID = claims.Subject
			}
		}
		if p.ID != "" {
			if err := syncer.SyncProfile(r.Context(), p); err != nil {
				logrus.WithError(err).Warn("profile sync failed on sign-in")
			}
		}

		render.JSON(w, r, map[string]string{"status": "signed_in"})
	}
}

// HandleSignOut stops the refresh loop, discards the token slot, and ends the
// provider session.
func HandleSignOut(supplier *auth.Supplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := supplier.SignOut(r.Context()); err != nil {
			logrus.WithError(err).Error("failed to end provider session")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Failed to end session"})
			return
		}
		render.JSON(w, r, map[string]string{"status": "signed_out"})
	}
}
