package entity

import "time"

// Recipe 配方（复合成本单元，成本由组件递归求和）
type Recipe struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Name       string    `json:"name" gorm:"size:128;not null"`
	BatchYield float64   `json:"batch_yield" gorm:"type:numeric(15,4);not null;default:1"`
	YieldUnit  string    `json:"yield_unit" gorm:"size:16;not null;default:pcs"`
	Notes      string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// 关联
	Components []RecipeComponent `json:"components,omitempty" gorm:"foreignKey:RecipeID"`
}

func (Recipe) TableName() string {
	return "recipes"
}

// RecipeComponent 配方组件行（带类型标签：原料/子配方/包装）
// Kind 决定成本来源；packaging 行计入购物清单但不计入成本。
type RecipeComponent struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	RecipeID     string  `json:"recipe_id" gorm:"size:32;not null;index"`
	Kind         string  `json:"kind" gorm:"size:16;not null"` // ingredient/sub_recipe/packaging
	IngredientID *string `json:"ingredient_id,omitempty" gorm:"size:32"`
	SubRecipeID  *string `json:"sub_recipe_id,omitempty" gorm:"size:32"`
	Quantity     float64 `json:"quantity" gorm:"type:numeric(15,4);not null"`
	Unit         string  `json:"unit" gorm:"size:16;not null"`
	SortOrder    int     `json:"sort_order" gorm:"not null;default:0"`

	// 关联
	Recipe     *Recipe     `json:"recipe,omitempty" gorm:"foreignKey:RecipeID"`
	Ingredient *Ingredient `json:"ingredient,omitempty" gorm:"foreignKey:IngredientID"`
	SubRecipe  *Recipe     `json:"sub_recipe,omitempty" gorm:"foreignKey:SubRecipeID"`
}

func (RecipeComponent) TableName() string {
	return "recipe_components"
}

// 组件类型常量
const (
	ComponentKindIngredient = "ingredient"
	ComponentKindSubRecipe  = "sub_recipe"
	ComponentKindPackaging  = "packaging"
)
