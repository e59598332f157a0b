package utils

import (
	"github.com/google/uuid"

	"github.com/datashed/datashed/internal/appcontext"
	"github.com/datashed/datashed/internal/entity"
)

func UserHasProjectAccess(ctx *appcontext.Context, userID uuid.UUID, projectID uuid.UUID) bool {
	var user entity.User
	var project entity.Project

	if err := ctx.DB.First(&user, userID).Error; err != nil {
		return false
	}

	if err := ctx.DB.Where("id = ? AND company_id = ?", projectID, user.CompanyID).First(&project).Error; err != nil {
		return false
	}

	return true
}

func UserHasDatasetAccess(ctx *appcontext.Context, userID uuid.UUID, datasetID uuid.UUID) bool {
	var dataset entity.Dataset

	if err := ctx.DB.First(&dataset, datasetID).Error; err != nil {
		return false
	}

	return UserHasProjectAccess(ctx, userID, dataset.ProjectID)
}
