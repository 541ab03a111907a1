package entity

import "time"

// PlanAmendment 计划修订记录（仅追加，生产中变更的审计日志）
// 创建时间的全序是权威顺序；记录一经写入不再修改。
type PlanAmendment struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	PlanID        string    `json:"plan_id" gorm:"size:32;not null;index"`
	Type          string    `json:"type" gorm:"size:32;not null"` // remove_item/add_item/adjust_quantity
	Payload       JSONB     `json:"payload" gorm:"type:jsonb;not null"`
	Justification string    `json:"justification" gorm:"type:text;not null"`
	CreatedBy     string    `json:"created_by" gorm:"size:32"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`

	// 关联
	Plan *ProductionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

func (PlanAmendment) TableName() string {
	return "plan_amendments"
}

// 修订类型常量
const (
	AmendmentTypeRemoveItem     = "remove_item"
	AmendmentTypeAddItem        = "add_item"
	AmendmentTypeAdjustQuantity = "adjust_quantity"
)
