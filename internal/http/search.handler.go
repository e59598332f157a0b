package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/datashed/datashed/internal/appcontext"
	"github.com/datashed/datashed/internal/dataset"
)

// SearchRows runs the dataset search grammar against the backing table.
// q carries the search string; sort, sort_direction, page and per_page
// shape the result window.
func SearchRows(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds, ok := loadAccessibleDataset(ctx, c)
		if !ok {
			return
		}

		params := dataset.SearchParams{
			Sort:          c.Query("sort"),
			SortDirection: c.Query("sort_direction"),
			Page:          intQuery(c, "page", dataset.DefaultPage),
			PerPage:       intQuery(c, "per_page", dataset.DefaultPerPage),
		}

		result, err := dataset.Search(ctx.DB, ds, c.Query("q"), params)
		if err != nil {
			if errors.Is(err, dataset.ErrNoColumns) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			ctx.Logger.Error("Failed to search dataset rows", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search dataset rows"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"columns":       result.Columns,
			"rows":          result.Rows,
			"total_results": result.TotalResults,
		})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
