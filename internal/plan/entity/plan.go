package entity

import "time"

// ProductionPlan 生产计划（生命周期所有者）
type ProductionPlan struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:32"`
	Name               string     `json:"name" gorm:"size:128;not null"`
	Status             string     `json:"status" gorm:"size:16;not null;default:draft"` // draft/locked/in_production/completed
	PlannedFor         *time.Time `json:"planned_for,omitempty"`
	BaselineSnapshotID *string    `json:"baseline_snapshot_id,omitempty" gorm:"size:32"`
	LockedAt           *time.Time `json:"locked_at,omitempty"`
	ProductionAt       *time.Time `json:"production_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedBy          string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// 关联
	Targets    []PlanTarget    `json:"targets,omitempty" gorm:"foreignKey:PlanID"`
	Amendments []PlanAmendment `json:"amendments,omitempty" gorm:"foreignKey:PlanID"`
	Baseline   *Snapshot       `json:"baseline,omitempty" gorm:"foreignKey:BaselineSnapshotID"`
}

func (ProductionPlan) TableName() string {
	return "production_plans"
}

// PlanTarget 计划目标行（配方 + 需求批次数）
// LinkedSnapshotID 在进入生产时设置一次，此后不再变化；
// 生产中对 RequestedQuantity 的修改必须伴随同事务的修订记录。
type PlanTarget struct {
	ID                string    `json:"id" gorm:"primaryKey;size:32"`
	PlanID            string    `json:"plan_id" gorm:"size:32;not null;index"`
	RecipeID          string    `json:"recipe_id" gorm:"size:32;not null"`
	RequestedQuantity float64   `json:"requested_quantity" gorm:"type:numeric(15,4);not null;default:1"`
	LinkedSnapshotID  *string   `json:"linked_snapshot_id,omitempty" gorm:"size:32"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// 关联
	Plan           *ProductionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	Recipe         *Recipe         `json:"recipe,omitempty" gorm:"foreignKey:RecipeID"`
	LinkedSnapshot *Snapshot       `json:"linked_snapshot,omitempty" gorm:"foreignKey:LinkedSnapshotID"`
}

func (PlanTarget) TableName() string {
	return "plan_targets"
}

// 计划状态常量
const (
	PlanStatusDraft        = "draft"
	PlanStatusLocked       = "locked"
	PlanStatusInProduction = "in_production"
	PlanStatusCompleted    = "completed"
)
