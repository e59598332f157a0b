package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datashed/datashed/internal/appcontext"
	"github.com/datashed/datashed/internal/dataset"
	"github.com/datashed/datashed/internal/entity"
	"github.com/datashed/datashed/internal/utils"
)

func GetProjectStatistics(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := uuid.Parse(c.Param("projectID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		userID, err := utils.GetUserIDFromClaims(c)
		if err != nil {
			ctx.Logger.Error("Failed to get user ID from claims", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if !utils.UserHasProjectAccess(ctx, userID, projectID) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User does not have access to this resource"})
			return
		}

		var datasets []entity.Dataset
		if err := ctx.DB.Where("project_id = ?", projectID).Find(&datasets).Error; err != nil {
			ctx.Logger.Error("Failed to fetch datasets", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch datasets"})
			return
		}

		var sourceFileCount int64
		if err := ctx.DB.Model(&entity.SourceFile{}).
			Joins("JOIN datasets ON source_files.dataset_id = datasets.id").
			Where("datasets.project_id = ?", projectID).
			Count(&sourceFileCount).Error; err != nil {
			ctx.Logger.Error("Failed to count source files", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count source files"})
			return
		}

		tm := dataset.NewService(ctx.DB).Tables()
		var totalColumnCount int
		var totalRowCount int64
		datasetStats := make([]map[string]interface{}, 0, len(datasets))
		for i := range datasets {
			ds := &datasets[i]
			totalColumnCount += len(ds.Columns)

			var rowCount int64
			exists, err := tm.TableExists(ds)
			if err != nil {
				ctx.Logger.Error("Failed to check backing table", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check backing table"})
				return
			}
			if exists {
				rowCount, err = tm.RowCount(ds)
				if err != nil {
					ctx.Logger.Error("Failed to count rows", zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count rows"})
					return
				}
			}
			totalRowCount += rowCount

			datasetStats = append(datasetStats, map[string]interface{}{
				"id":             ds.ID,
				"shortname":      ds.Shortname,
				"name":           ds.Name,
				"column_count":   len(ds.Columns),
				"row_count":      rowCount,
				"table_exists":   exists,
				"last_import_at": ds.LastImportAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"dataset_count":     len(datasets),
			"source_file_count": sourceFileCount,
			"column_count":      totalColumnCount,
			"row_count":         totalRowCount,
			"datasets":          datasetStats,
		})
	}
}
