package repository

import (
	"context"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"gorm.io/gorm"
)

type RecipeRepository struct {
	db *gorm.DB
}

func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// Create 创建配方
func (r *RecipeRepository) Create(ctx context.Context, recipe *entity.Recipe) error {
	return r.db.WithContext(ctx).Create(recipe).Error
}

// FindByID 根据ID查找配方（含组件及其原料）
func (r *RecipeRepository) FindByID(ctx context.Context, id string) (*entity.Recipe, error) {
	var recipe entity.Recipe
	err := r.db.WithContext(ctx).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Components.Ingredient").
		First(&recipe, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &recipe, nil
}

// List 配方列表
func (r *RecipeRepository) List(ctx context.Context) ([]entity.Recipe, error) {
	var recipes []entity.Recipe
	err := r.db.WithContext(ctx).Order("name ASC").Find(&recipes).Error
	return recipes, err
}

// CreateComponent 追加配方组件行
func (r *RecipeRepository) CreateComponent(ctx context.Context, c *entity.RecipeComponent) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListComponents 某配方的组件行
func (r *RecipeRepository) ListComponents(ctx context.Context, recipeID string) ([]entity.RecipeComponent, error) {
	var components []entity.RecipeComponent
	err := r.db.WithContext(ctx).
		Preload("Ingredient").
		Where("recipe_id = ?", recipeID).
		Order("sort_order ASC, id ASC").
		Find(&components).Error
	return components, err
}
