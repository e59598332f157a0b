package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Datasets  []Dataset `gorm:"foreignKey:ProjectID" json:"datasets"`
	CompanyID uuid.UUID `gorm:"type:uuid" json:"company_id"`
	Company   Company   `gorm:"foreignKey:CompanyID" json:"-"`
}
