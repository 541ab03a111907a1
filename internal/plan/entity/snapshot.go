package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot 不可变快照（配方结构 + 捕获时点成本）
// Payload 创建后只读；OwningRunID 是唯一允许后补的字段（规划快照挂接到运行）。
type Snapshot struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	TargetType  string    `json:"target_type" gorm:"size:16;not null"` // recipe/plan
	TargetID    string    `json:"target_id" gorm:"size:32;not null;index"`
	OwningRunID *string   `json:"owning_run_id,omitempty" gorm:"size:32;uniqueIndex"`
	ScaleFactor float64   `json:"scale_factor" gorm:"type:numeric(10,4);not null;default:1"`
	Payload     JSONB     `json:"payload" gorm:"type:jsonb;not null"`
	CreatedBy   string    `json:"created_by" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}

// 快照目标类型常量
const (
	SnapshotTargetRecipe = "recipe"
	SnapshotTargetPlan   = "plan"
)

// SnapshotPayloadVersion 当前载荷格式版本
const SnapshotPayloadVersion = 1

// SnapshotPayload 快照载荷（自描述、带版本号的内部文档）
type SnapshotPayload struct {
	Version    int                 `json:"version"`
	Name       string              `json:"name"`
	Components []SnapshotComponent `json:"components"`
}

// SnapshotComponent 快照组件行：配方快照中是配方组件，
// 计划基线快照中是目标配方（Quantity 为需求批次数，UnitCost 为捕获时单批成本）。
type SnapshotComponent struct {
	RefID    string          `json:"ref_id"`
	Kind     string          `json:"kind"`
	Name     string          `json:"name"`
	Quantity float64         `json:"quantity"`
	Unit     string          `json:"unit"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// ToJSONB 序列化载荷为存储文档
func (p SnapshotPayload) ToJSONB() (JSONB, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var doc JSONB
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeSnapshotPayload 解码并校验快照载荷版本
func DecodeSnapshotPayload(doc JSONB) (*SnapshotPayload, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var p SnapshotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Version != SnapshotPayloadVersion {
		return nil, fmt.Errorf("unsupported snapshot payload version %d", p.Version)
	}
	return &p, nil
}
