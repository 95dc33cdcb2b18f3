package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"social-canvas/backend"
	"social-canvas/core"
	"social-canvas/stores/memory"
	"social-canvas/stores/remote"
	"social-canvas/stores/sqlite"
)

// GetCanvasStore selects the canvas persistence backend from the
// environment: the hosted backend (default), a local sqlite file, or memory.
func GetCanvasStore(db backend.Client) core.CanvasStore {
	storageType := os.Getenv("CANVAS_STORAGE_TYPE")

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	var store core.CanvasStore
	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("CANVAS_DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "canvases.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "memory":
		store = memory.NewStore()
	default:
		store = remote.NewStore(db)
		storageField["storageType"] = "remote"
	}
	logrus.WithFields(storageField).Info("Use canvas storage")
	return store
}
