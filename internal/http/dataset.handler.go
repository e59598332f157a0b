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

func CreateDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		type createDatasetRequest struct {
			Shortname   string `json:"shortname" binding:"required"`
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
			SourceURL   string `json:"source_url"`
		}

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

		var request createDatasetRequest
		if err := c.BindJSON(&request); err != nil {
			ctx.Logger.Error("Failed to bind request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to bind request"})
			return
		}

		ds := entity.Dataset{
			ProjectID:   projectID,
			Shortname:   request.Shortname,
			Name:        request.Name,
			Description: request.Description,
			SourceURL:   request.SourceURL,
		}

		if err := dataset.NewService(ctx.DB).CreateDataset(&ds); err != nil {
			if entity.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": err.(*entity.ValidationErrors).Messages()})
				return
			}
			ctx.Logger.Error("Failed to create dataset", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dataset"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"dataset": ds})
	}
}

func GetDatasets(ctx *appcontext.Context) gin.HandlerFunc {
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

		c.JSON(http.StatusOK, gin.H{"datasets": datasets})
	}
}

func GetDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		tm := dataset.NewService(ctx.DB).Tables()
		exists, err := tm.TableExists(ds)
		if err != nil {
			ctx.Logger.Error("Failed to check backing table", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check backing table"})
			return
		}

		var rowCount int64
		if exists {
			rowCount, err = tm.RowCount(ds)
			if err != nil {
				ctx.Logger.Error("Failed to count rows", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count rows"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"dataset":      ds,
			"columns":      ds.ColumnNames(),
			"table_exists": exists,
			"row_count":    rowCount,
		})
	}
}

func DeleteDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		if err := dataset.NewService(ctx.DB).DestroyDataset(ds); err != nil {
			ctx.Logger.Error("Failed to destroy dataset", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to destroy dataset"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Dataset destroyed successfully"})
	}
}

// loadAccessibleDataset resolves the datasetID route parameter, loads
// the dataset with its source files and enforces project access. On
// failure the response has already been written.
func loadAccessibleDataset(ctx *appcontext.Context, c *gin.Context) (*entity.Dataset, bool) {
	datasetID, err := uuid.Parse(c.Param("datasetID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dataset ID"})
		return nil, false
	}

	userID, err := utils.GetUserIDFromClaims(c)
	if err != nil {
		ctx.Logger.Error("Failed to get user ID from claims", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	if !utils.UserHasDatasetAccess(ctx, userID, datasetID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User does not have access to this resource"})
		return nil, false
	}

	var ds entity.Dataset
	if err := ctx.DB.Preload("SourceFiles").First(&ds, datasetID).Error; err != nil {
		ctx.Logger.Error("Failed to fetch dataset", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return nil, false
	}
	return &ds, true
}
