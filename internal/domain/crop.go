package domain

import (
	"database/sql"
	"time"
)

// CropStatus 作物状态
type CropStatus string

const (
	CropPlanted         CropStatus = "PLANTED"
	CropGrowing         CropStatus = "GROWING"
	CropReadyForHarvest CropStatus = "READY_FOR_HARVEST"
	CropHarvested       CropStatus = "HARVESTED"
	CropFailed          CropStatus = "FAILED"
)

// Valid 是否为已知状态
func (s CropStatus) Valid() bool {
	switch s {
	case CropPlanted, CropGrowing, CropReadyForHarvest, CropHarvested, CropFailed:
		return true
	}
	return false
}

// Crop 作物领域模型（对应 crops 表）
type Crop struct {
	CropID      string         `db:"crop_id"`
	Name        string         `db:"name"` // NOT NULL
	Variety     sql.NullString `db:"variety"`
	Description sql.NullString `db:"description"`
	FarmID      string         `db:"farm_id"` // NOT NULL FK farms

	PlantingDate        sql.NullTime `db:"planting_date"`
	ExpectedHarvestDate sql.NullTime `db:"expected_harvest_date"`
	ActualHarvestDate   sql.NullTime `db:"actual_harvest_date"`

	AreaPlanted   sql.NullFloat64 `db:"area_planted"`
	ExpectedYield sql.NullFloat64 `db:"expected_yield"`
	ActualYield   sql.NullFloat64 `db:"actual_yield"`

	Status CropStatus     `db:"status"` // default PLANTED
	Notes  sql.NullString `db:"notes"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
