package http

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datashed/datashed/internal/appcontext"
	"github.com/datashed/datashed/internal/dataset"
	"github.com/datashed/datashed/internal/entity"
)

func UploadSourceFile(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			ctx.Logger.Error("Failed to get file from request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
			return
		}

		if !isCSVFile(file) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type, only CSV files are allowed"})
			return
		}

		src, err := file.Open()
		if err != nil {
			ctx.Logger.Error("Failed to open file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
			return
		}
		defer src.Close()

		objectPath := ds.ID.String() + "/" + file.Filename

		w := ctx.GCSClient.Bucket(ctx.GCSBucketName).Object(objectPath).NewWriter(context.Background())
		if _, err := io.Copy(w, src); err != nil {
			ctx.Logger.Error("Failed to upload file to GCS", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file to GCS"})
			return
		}
		if err := w.Close(); err != nil {
			ctx.Logger.Error("Failed to close GCS writer", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close GCS writer"})
			return
		}

		var ordinal int64
		if err := ctx.DB.Model(&entity.SourceFile{}).Where("dataset_id = ?", ds.ID).Count(&ordinal).Error; err != nil {
			ctx.Logger.Error("Failed to count source files", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count source files"})
			return
		}

		sourceFile := entity.SourceFile{
			DatasetID:   ds.ID,
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Size:        file.Size,
			URL:         "https://storage.googleapis.com/" + ctx.GCSBucketName + "/" + objectPath,
			Status:      entity.SourceFileStatusNew,
			Ordinal:     int(ordinal) + 1,
		}

		if err := ctx.DB.Create(&sourceFile).Error; err != nil {
			ctx.Logger.Error("Failed to store source file in database", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store source file in database"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"source_file": sourceFile})
	}
}

func ImportSourceFile(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		fileID, err := uuid.Parse(c.Param("fileID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file ID"})
			return
		}

		var sourceFile entity.SourceFile
		if err := ctx.DB.Where("id = ? AND dataset_id = ?", fileID, ds.ID).First(&sourceFile).Error; err != nil {
			ctx.Logger.Error("Failed to fetch source file", zap.Error(err))
			c.JSON(http.StatusNotFound, gin.H{"error": "Source file not found"})
			return
		}

		objectPath := ds.ID.String() + "/" + sourceFile.Filename
		rc, err := ctx.GCSClient.Bucket(ctx.GCSBucketName).Object(objectPath).NewReader(context.Background())
		if err != nil {
			ctx.Logger.Error("Failed to fetch source file from GCS", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch source file from GCS"})
			return
		}
		defer rc.Close()

		imported, err := dataset.NewService(ctx.DB).ImportSourceFile(ds, &sourceFile, rc)
		if err != nil {
			if errors.Is(err, dataset.ErrNoColumns) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Logger.Error("Failed to import source file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import source file"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Source file imported successfully", "rows_imported": imported})
	}
}

func isCSVFile(file *multipart.FileHeader) bool {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".csv" {
		return false
	}

	mimeType := file.Header.Get("Content-Type")
	return mimeType == "text/csv" || mimeType == "application/vnd.ms-excel" || mimeType == "application/octet-stream"
}
