package core

import (
	"context"
	"time"
)

type (
	// Owner carries the joined user columns returned with catalog rows.
	Owner struct {
		FirstName string `json:"first_name,omitempty"`
		LastName  string `json:"last_name,omitempty"`
		Email     string `json:"email,omitempty"`
	}

	// Catalog is one user-created catalog row. Rows are immutable except for
	// deletion; CreationDate is the user-entered year, CreatedAt the row
	// timestamp.
	Catalog struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		CreationDate int       `json:"creation_date"`
		UserID       string    `json:"user_id"`
		CreatedAt    time.Time `json:"created_at"`
		CreationTime string    `json:"creation_time,omitempty"`
		Owner        *Owner    `json:"users,omitempty"`
	}

	// CatalogRepository exposes the catalog operations available to the view
	// layer. All reads are scoped to the owner; the backend's row-level
	// policies enforce the same scoping server-side, and callers must not
	// assume either layer is the only one.
	CatalogRepository interface {
		List(ctx context.Context, ownerID string) ([]Catalog, error)
		Create(ctx context.Context, owner Profile, name, year string) (*Catalog, error)
		Delete(ctx context.Context, id string) error
	}
)
