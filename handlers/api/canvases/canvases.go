package canvases

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"social-canvas/core"
	"social-canvas/middleware"
)

// Persister is the canvas persistence surface the handlers need.
type Persister interface {
	Save(ctx context.Context, userID, canvasName string, snapshot core.Snapshot) (*core.CanvasDocument, error)
	Load(ctx context.Context, userID, canvasName string) (*core.CanvasDocument, error)
}

// HandleLoad returns the stored document for a canvas name. A canvas that
// has never been saved responds 200 with a null document, not 404: starting
// fresh is a normal outcome.
func HandleLoad(svc Persister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		name := chi.URLParam(r, "name")
		if name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Canvas name is required"})
			return
		}

		doc, err := svc.Load(r.Context(), claims.Subject, name)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"canvas": name,
			}).Error("Failed to load canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load canvas"})
			return
		}

		render.JSON(w, r, doc)
	}
}

// HandleSave is the manual save path, bypassing the bridge.
func HandleSave(svc Persister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		name := chi.URLParam(r, "name")
		if name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Canvas name is required"})
			return
		}

		var snapshot core.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid snapshot body"})
			return
		}

		doc, err := svc.Save(r.Context(), claims.Subject, name, snapshot)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"canvas": name,
			}).Error("Failed to save canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save canvas"})
			return
		}

		render.JSON(w, r, doc)
	}
}
