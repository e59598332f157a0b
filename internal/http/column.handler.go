package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/datashed/datashed/internal/appcontext"
	"github.com/datashed/datashed/internal/dataset"
	"github.com/datashed/datashed/internal/entity"
)

func UpdateColumns(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		type updateColumnsRequest struct {
			Columns []dataset.ColumnSpec `json:"columns" binding:"required"`
		}

		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		var request updateColumnsRequest
		if err := c.BindJSON(&request); err != nil {
			ctx.Logger.Error("Failed to bind request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to bind request"})
			return
		}

		if err := dataset.NewService(ctx.DB).UpdateColumns(ds, request.Columns); err != nil {
			if entity.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": err.(*entity.ValidationErrors).Messages()})
				return
			}
			ctx.Logger.Error("Failed to update columns", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update columns"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"columns": ds.Columns})
	}
}

func DeleteColumns(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		if err := dataset.NewService(ctx.DB).DeleteColumns(ds); err != nil {
			ctx.Logger.Error("Failed to delete columns", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete columns"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Columns deleted successfully"})
	}
}
