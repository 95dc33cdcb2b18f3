package filesystem

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

type fsStore struct {
	basePath      string
	publicBaseURL string
}

// NewStore keeps assets on local disk under basePath. publicBaseURL is the
// URL prefix the host serves that directory from.
func NewStore(basePath, publicBaseURL string) *fsStore {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		log.Fatalf("failed to create asset directory: %v", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "/assets"
	}
	return &fsStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// BasePath returns the directory assets are written under, for mounting a
// file server.
func (s *fsStore) BasePath() string { return s.basePath }

func (s *fsStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	// Keys are {user}/{canvas}/{asset}.{ext}; reject anything trying to
	// climb out of the base directory.
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid asset key %q", key)
	}
	target := filepath.Join(s.basePath, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write asset: %w", err)
	}
	return nil
}

func (s *fsStore) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}
