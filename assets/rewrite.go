// Package assets migrates inline canvas images to object storage. The
// rewrite runs once per save, ahead of the document upsert, and is never
// reversed at load time.
package assets

import (
	"context"
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"social-canvas/core"
)

var dataURIHeader = regexp.MustCompile(`^data:(.*?);base64$`)

// Rewriter uploads embedded image blobs and swaps each in-document reference
// for the object's public URL.
type Rewriter struct {
	bucket core.BucketStore
}

// NewRewriter builds a rewriter over the given bucket.
func NewRewriter(bucket core.BucketStore) *Rewriter {
	return &Rewriter{bucket: bucket}
}

// Rewrite walks the snapshot's asset records and migrates every inline image
// to object storage under {userID}/{canvasName}/{assetID}.{ext}. Each upload
// is best-effort: a failure logs, leaves that asset inline, and moves on. The
// snapshot is mutated in place and returned.
func (r *Rewriter) Rewrite(ctx context.Context, userID, canvasName string, snapshot core.Snapshot) core.Snapshot {
	store, ok := snapshot["store"].(map[string]any)
	if !ok {
		return snapshot
	}
	records, ok := store["assets"].(map[string]any)
	if !ok {
		return snapshot
	}

	for id, entry := range records {
		asset, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if asset["typeName"] != "asset" || asset["type"] != "image" {
			continue
		}
		props, ok := asset["props"].(map[string]any)
		if !ok {
			continue
		}
		src, ok := props["src"].(string)
		if !ok || !strings.HasPrefix(src, "data:") {
			continue
		}

		log := logrus.WithFields(logrus.Fields{"asset_id": id, "canvas": canvasName})

		mimeType, data, err := decodeDataURI(src)
		if err != nil {
			log.WithError(err).Warn("skipping undecodable image asset")
			continue
		}
		ext := "png"
		if parts := strings.SplitN(mimeType, "/", 2); len(parts) == 2 && parts[1] != "" {
			ext = parts[1]
		}
		key := userID + "/" + url.PathEscape(canvasName) + "/" + id + "." + ext

		if err := r.bucket.Upload(ctx, key, data, mimeType); err != nil {
			log.WithError(err).Warn("image upload failed, keeping asset inline")
			continue
		}
		props["src"] = r.bucket.PublicURL(key)
		log.Debug("asset rewritten to storage")
	}
	return snapshot
}

// decodeDataURI splits a data: URI into its mime type and raw bytes. The mime
// type defaults to image/png when the header does not name one.
func decodeDataURI(src string) (string, []byte, error) {
	header, payload, found := strings.Cut(src, ",")
	if !found {
		return "", nil, base64.CorruptInputError(0)
	}
	mimeType := "image/png"
	if m := dataURIHeader.FindStringSubmatch(header); m != nil && m[1] != "" {
		mimeType = m[1]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}
