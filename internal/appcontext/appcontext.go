package appcontext

import (
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Context struct {
	DB     *gorm.DB
	Logger *zap.Logger

	GCSClient     *storage.Client
	GCSBucketName string
}
