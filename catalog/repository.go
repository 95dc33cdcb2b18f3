// Package catalog implements the catalog operations backed by the hosted
// table API: list, create, delete, plus profile sync and a connection probe.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"social-canvas/backend"
	"social-canvas/core"
)

// ownerColumns is the embedded users resource returned with catalog rows.
const ownerColumns = "*, users!catalog_user_id_fkey (first_name, last_name, email)"

// createMaxRetries is the call-site retry budget for catalog creation on
// token expiry, layered over the client decorator's single retry.
const createMaxRetries = 2

// Repository performs catalog operations for the signed-in user. Failures of
// user-initiated operations are both returned and surfaced through the
// notifier.
type Repository struct {
	db     backend.Client
	notify core.Notifier

	// retryDelay separates create attempts after a token-expiry failure.
	retryDelay time.Duration
}

// NewRepository builds a repository over the authenticated backend client.
func NewRepository(db backend.Client, notify core.Notifier) *Repository {
	if notify == nil {
		notify = core.LogNotifier{}
	}
	return &Repository{db: db, notify: notify, retryDelay: time.Second}
}

// List returns the owner's catalogs, newest first. The owner filter mirrors
// the backend's row-level policy; neither side assumes the other is the only
// enforcement layer.
func (r *Repository) List(ctx context.Context, ownerID string) ([]core.Catalog, error) {
	rows, err := r.db.Select(ctx, backend.Query{
		Table:      "catalog",
		Columns:    ownerColumns,
		Filters:    []backend.Filter{backend.Eq("user_id", ownerID)},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		r.notify.Alert("Fetch Error", err.Error())
		return nil, err
	}
	catalogs := make([]core.Catalog, 0, len(rows))
	for _, row := range rows {
		var c core.Catalog
		if err := decodeRow(row, &c); err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}

// Create validates the input, then inserts one catalog row owned by the
// caller. Validation failures short-circuit with a user-facing message and no
// network request. Token-expiry failures are retried at this call site with a
// fixed delay, on top of the client decorator's own single retry.
func (r *Repository) Create(ctx context.Context, owner core.Profile, name, year string) (*core.Catalog, error) {
	if strings.TrimSpace(name) == "" {
		r.notify.Alert("Error", "Please enter a catalog name")
		return nil, fmt.Errorf("catalog name is required")
	}
	if strings.TrimSpace(year) == "" {
		r.notify.Alert("Error", "Please enter a creation year")
		return nil, fmt.Errorf("creation year is required")
	}
	yearNum, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || yearNum < 1900 || yearNum > 2100 {
		r.notify.Alert("Error", "Please enter a valid year between 1900 and 2100")
		return nil, fmt.Errorf("invalid creation year %q", year)
	}

	write := backend.Write{
		Table: "catalog",
		Rows: []backend.Row{{
			"name":          name,
			"creation_date": yearNum,
			"user_id":       owner.ID,
		}},
		Returning: ownerColumns,
	}

	var lastErr error
	for attempt := 0; attempt <= createMaxRetries; attempt++ {
		rows, err := r.db.Insert(ctx, write)
		if err != nil {
			lastErr = err
			if backend.IsAuthExpired(err) && attempt < createMaxRetries {
				logrus.WithField("attempt", attempt+1).Info("token expired creating catalog, retrying")
				if !sleep(ctx, r.retryDelay) {
					break
				}
				continue
			}
			break
		}
		if len(rows) == 0 {
			lastErr = fmt.Errorf("catalog insert returned no row")
			break
		}
		var created core.Catalog
		if err := decodeRow(rows[0], &created); err != nil {
			lastErr = err
			break
		}
		r.notify.Alert("Success", "Catalog created successfully!")
		return &created, nil
	}

	r.notify.Alert("Create Error", lastErr.Error())
	return nil, lastErr
}

// Delete removes one catalog by id. Ownership is enforced by the backend's
// row-level policy.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.db.Delete(ctx, "catalog", backend.Eq("id", id)); err != nil {
		r.notify.Alert("Delete Error", err.Error())
		return err
	}
	r.notify.Alert("Success", "Catalog deleted successfully!")
	return nil
}

// SyncProfile mirrors the identity provider's user record into the backend's
// users table. Called on sign-in so catalog rows can join owner columns.
func (r *Repository) SyncProfile(ctx context.Context, p core.Profile) error {
	_, err := r.db.Upsert(ctx, backend.Write{
		Table: "users",
		Rows: []backend.Row{{
			"id":         p.ID,
			"email":      p.Email,
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"avatar_url": p.AvatarURL,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", p.ID).Error("Failed to sync profile")
	}
	return err
}

// CheckConnection probes the backend with a minimal read and returns a
// user-facing status line.
func (r *Repository) CheckConnection(ctx context.Context) (string, error) {
	_, err := r.db.Select(ctx, backend.Query{
		Table:   "users",
		Columns: "count",
		Limit:   1,
	})
	if err != nil {
		return fmt.Sprintf("Connection error: %s", err.Error()), err
	}
	return "Backend connected", nil
}

// decodeRow maps a JSON row onto a typed struct.
func decodeRow(row backend.Row, out any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// sleep waits for d unless ctx ends first; reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
