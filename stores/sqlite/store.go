// Package sqlite keeps canvas documents in a local database file: the
// on-device persistence variant used when no hosted backend is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"social-canvas/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (or creates) the database file and its schema.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	canvasTableStmt := `
	CREATE TABLE IF NOT EXISTS canvases (
		user_id TEXT NOT NULL,
		canvas_name TEXT NOT NULL,
		data BLOB,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME,
		PRIMARY KEY (user_id, canvas_name)
	);`
	if _, err = db.Exec(canvasTableStmt); err != nil {
		log.Fatalf("failed to create canvases table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Save(ctx context.Context, doc *core.CanvasDocument) (*core.CanvasDocument, error) {
	blob, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO canvases (user_id, canvas_name, data, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (user_id, canvas_name)
		DO UPDATE SET data = excluded.data, version = version + 1, updated_at = excluded.updated_at`,
		doc.UserID, doc.CanvasName, blob, now)
	if err != nil {
		logrus.WithError(err).WithField("canvas", doc.CanvasName).Error("Failed to save canvas")
		return nil, err
	}

	saved := &core.CanvasDocument{
		UserID:     doc.UserID,
		CanvasName: doc.CanvasName,
		Data:       doc.Data,
		UpdatedAt:  now,
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT version FROM canvases WHERE user_id = ? AND canvas_name = ?",
		doc.UserID, doc.CanvasName).Scan(&saved.Version)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *sqliteStore) Load(ctx context.Context, userID, canvasName string) (*core.CanvasDocument, error) {
	doc := &core.CanvasDocument{UserID: userID, CanvasName: canvasName}
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data, version, updated_at FROM canvases WHERE user_id = ? AND canvas_name = ?",
		userID, canvasName).Scan(&blob, &doc.Version, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &doc.Data); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
