// Package remote persists canvas documents through the hosted table API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"social-canvas/backend"
	"social-canvas/core"
)

const canvasColumns = "data, version, updated_at"

// authRetryDelay separates the two upsert attempts after a token-expiry
// failure, long enough for the refresh cycle to land a fresh token.
const authRetryDelay = 2 * time.Second

type remoteStore struct {
	db backend.Client

	// retryDelay is authRetryDelay in production; tests shorten it.
	retryDelay time.Duration
}

// NewStore builds a canvas store over the authenticated backend client.
func NewStore(db backend.Client) *remoteStore {
	return &remoteStore{db: db, retryDelay: authRetryDelay}
}

// Save upserts the document keyed by (user_id, canvas_name). A token-expiry
// failure waits the fixed delay and retries exactly once before surfacing.
func (s *remoteStore) Save(ctx context.Context, doc *core.CanvasDocument) (*core.CanvasDocument, error) {
	write := backend.Write{
		Table: "canvases",
		Rows: []backend.Row{{
			"user_id":     doc.UserID,
			"canvas_name": doc.CanvasName,
			"data":        doc.Data,
		}},
		OnConflict: "user_id,canvas_name",
		Returning:  canvasColumns,
	}

	rows, err := s.db.Upsert(ctx, write)
	if backend.IsAuthExpired(err) {
		logrus.WithField("canvas", doc.CanvasName).Info("token expired during save, waiting and retrying")
		if !sleep(ctx, s.retryDelay) {
			return nil, ctx.Err()
		}
		rows, err = s.db.Upsert(ctx, write)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("canvas upsert returned no row")
	}

	saved := &core.CanvasDocument{UserID: doc.UserID, CanvasName: doc.CanvasName}
	if err := decodeRow(rows[0], saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// Load selects the document by its composite key. Zero matching rows is the
// normal "no document yet" outcome and returns (nil, nil).
func (s *remoteStore) Load(ctx context.Context, userID, canvasName string) (*core.CanvasDocument, error) {
	rows, err := s.db.Select(ctx, backend.Query{
		Table:   "canvases",
		Columns: "data",
		Filters: []backend.Filter{
			backend.Eq("user_id", userID),
			backend.Eq("canvas_name", canvasName),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	doc := &core.CanvasDocument{UserID: userID, CanvasName: canvasName}
	if err := decodeRow(rows[0], doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeRow(row backend.Row, out any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

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
