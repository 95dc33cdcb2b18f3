// Package health exposes the backend connection probe.
package health

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
)

// Prober runs the backend connectivity check.
type Prober interface {
	CheckConnection(ctx context.Context) (string, error)
}

func HandleCheck(prober Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := prober.CheckConnection(r.Context())
		if err != nil {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"status": status, "error": err.Error()})
			return
		}
		render.JSON(w, r, map[string]string{"status": status})
	}
}
