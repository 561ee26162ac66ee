package domain

import (
	"database/sql"
	"time"
)

// Farm 农场领域模型（对应 farms 表）
// owner_id 是所有权关系的唯一持有方：owner 的 ownedFarms 由查询派生，
// 不在任何结构体里做双向冗余
type Farm struct {
	FarmID      string          `db:"farm_id"`
	Name        string          `db:"name"` // NOT NULL
	Description sql.NullString  `db:"description"`
	Location    string          `db:"location"` // NOT NULL
	Size        float64         `db:"size"`     // > 0
	SizeUnit    string          `db:"size_unit"` // default 'hectares'
	OwnerID     sql.NullString  `db:"owner_id"`  // nullable FK users
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// SupervisorAssignment 主管-农场分配（对应 supervisor_farm_assignments 表）
// 一个主管最多 2 条
type SupervisorAssignment struct {
	SupervisorID string    `db:"supervisor_id"`
	FarmID       string    `db:"farm_id"`
	AssignedAt   time.Time `db:"assigned_at"`
}

// MaxSupervisedFarms 单个主管可同时负责的农场上限
const MaxSupervisedFarms = 2
