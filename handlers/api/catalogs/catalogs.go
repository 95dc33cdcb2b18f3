package catalogs

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

// Repository is the catalog surface the handlers need.
type Repository interface {
	List(ctx context.Context, ownerID string) ([]core.Catalog, error)
	Create(ctx context.Context, owner core.Profile, name, year string) (*core.Catalog, error)
	Delete(ctx context.Context, id string) error
}

func HandleList(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		catalogs, err := repo.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list catalogs")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list catalogs"})
			return
		}

		if catalogs == nil {
			catalogs = []core.Catalog{}
		}
		render.JSON(w, r, catalogs)
	}
}

func HandleCreate(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var body struct {
			Name string `json:"name"`
			Year string `json:"year"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		created, err := repo.Create(r.Context(), core.Profile{ID: claims.Subject}, body.Name, body.Year)
		if err != nil {
			// Validation and backend failures alike come back as a structured
			// failure; the repository has already alerted the user.
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, created)
	}
}

func HandleDelete(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.ClaimsFrom(r.Context()); !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Catalog id is required"})
			return
		}

		if err := repo.Delete(r.Context(), id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"catalogID": id,
			}).Error("Failed to delete catalog")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete catalog"})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}
