package domain

import (
	"database/sql"
	"time"
)

// HealthStatus 牲畜健康状态
type HealthStatus string

const (
	HealthHealthy        HealthStatus = "HEALTHY"
	HealthSick           HealthStatus = "SICK"
	HealthUnderTreatment HealthStatus = "UNDER_TREATMENT"
	HealthQuarantined    HealthStatus = "QUARANTINED"
	HealthDeceased       HealthStatus = "DECEASED"
)

// Valid 是否为已知状态
func (s HealthStatus) Valid() bool {
	switch s {
	case HealthHealthy, HealthSick, HealthUnderTreatment, HealthQuarantined, HealthDeceased:
		return true
	}
	return false
}

// Livestock 牲畜领域模型（对应 livestock 表）
type Livestock struct {
	LivestockID string         `db:"livestock_id"`
	Type        string         `db:"type"`       // NOT NULL（cattle/sheep/poultry…）
	Breed       sql.NullString `db:"breed"`
	TagNumber   string         `db:"tag_number"` // NOT NULL, unique
	FarmID      string         `db:"farm_id"`    // NOT NULL FK farms

	BirthDate sql.NullTime    `db:"birth_date"`
	Gender    sql.NullString  `db:"gender"`
	Weight    sql.NullFloat64 `db:"weight"`

	HealthStatus        HealthStatus `db:"health_status"` // default HEALTHY
	LastVaccinationDate sql.NullTime `db:"last_vaccination_date"`
	NextVaccinationDate sql.NullTime `db:"next_vaccination_date"`

	PurchasePrice sql.NullFloat64 `db:"purchase_price"`
	CurrentValue  sql.NullFloat64 `db:"current_value"`
	Notes         sql.NullString  `db:"notes"`
	IsActive      bool            `db:"is_active"` // default true

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
