package assets

import (
	"os"

	"github.com/sirupsen/logrus"

	"social-canvas/assets/filesystem"
	"social-canvas/assets/memory"
	"social-canvas/assets/minio"
	"social-canvas/assets/s3"
	"social-canvas/core"
)

// GetBucketStore selects the asset bucket backend from the environment.
func GetBucketStore() core.BucketStore {
	storageType := os.Getenv("ASSET_STORAGE_TYPE")

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	var store core.BucketStore
	switch storageType {
	case "s3":
		bucketName := os.Getenv("ASSET_S3_BUCKET")
		if bucketName == "" {
			logrus.Fatal("ASSET_S3_BUCKET environment variable must be set for s3 asset storage")
		}
		storageField["bucketName"] = bucketName
		store = s3.NewStore(bucketName, os.Getenv("ASSET_PUBLIC_BASE_URL"))
	case "minio":
		store = minio.NewStore(
			os.Getenv("MINIO_ENDPOINT"),
			os.Getenv("MINIO_ACCESS_KEY"),
			os.Getenv("MINIO_SECRET_KEY"),
			os.Getenv("ASSET_MINIO_BUCKET"),
			os.Getenv("MINIO_USE_SSL") == "true",
		)
		storageField["bucketName"] = os.Getenv("ASSET_MINIO_BUCKET")
	case "filesystem":
		basePath := os.Getenv("ASSET_STORAGE_PATH")
		if basePath == "" {
			basePath = "./assets-data"
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath, os.Getenv("ASSET_PUBLIC_BASE_URL"))
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use asset storage")
	return store
}
