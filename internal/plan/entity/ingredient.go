package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient 原料（基础成本单元，成本来自采购历史的加权平均）
type Ingredient struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Unit      string    `json:"unit" gorm:"size:16;not null;default:g"`
	Category  string    `json:"category" gorm:"size:16;not null;default:raw"` // raw/packaging
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Purchases []PurchaseEntry `json:"purchases,omitempty" gorm:"foreignKey:IngredientID"`
}

func (Ingredient) TableName() string {
	return "ingredients"
}

// PurchaseEntry 采购记录（不可变，加权平均成本的输入）
type PurchaseEntry struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	IngredientID string          `json:"ingredient_id" gorm:"size:32;not null;index"`
	Quantity     float64         `json:"quantity" gorm:"type:numeric(15,4);not null"`
	UnitCost     decimal.Decimal `json:"unit_cost" gorm:"type:numeric(15,4);not null"`
	Supplier     string          `json:"supplier,omitempty" gorm:"size:128"`
	PurchasedAt  time.Time       `json:"purchased_at" gorm:"not null"`
	CreatedAt    time.Time       `json:"created_at"`

	// 关联
	Ingredient *Ingredient `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
}

func (PurchaseEntry) TableName() string {
	return "purchase_entries"
}

// 原料分类常量
const (
	IngredientCategoryRaw       = "raw"
	IngredientCategoryPackaging = "packaging"
)
