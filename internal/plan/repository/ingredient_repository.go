package repository

import (
	"context"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"gorm.io/gorm"
)

type IngredientRepository struct {
	db *gorm.DB
}

func NewIngredientRepository(db *gorm.DB) *IngredientRepository {
	return &IngredientRepository{db: db}
}

// Create 创建原料
func (r *IngredientRepository) Create(ctx context.Context, ing *entity.Ingredient) error {
	return r.db.WithContext(ctx).Create(ing).Error
}

// FindByID 根据ID查找原料
func (r *IngredientRepository) FindByID(ctx context.Context, id string) (*entity.Ingredient, error) {
	var ing entity.Ingredient
	err := r.db.WithContext(ctx).First(&ing, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &ing, nil
}

// List 原料列表
func (r *IngredientRepository) List(ctx context.Context, category string) ([]entity.Ingredient, error) {
	var ings []entity.Ingredient
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("name ASC").Find(&ings).Error
	return ings, err
}

// CreatePurchase 追加采购记录
func (r *IngredientRepository) CreatePurchase(ctx context.Context, p *entity.PurchaseEntry) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// ListPurchases 某原料的采购历史（旧到新）
func (r *IngredientRepository) ListPurchases(ctx context.Context, ingredientID string) ([]entity.PurchaseEntry, error) {
	var entries []entity.PurchaseEntry
	err := r.db.WithContext(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("purchased_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// ListPurchasesByIngredients 批量加载多个原料的采购历史
func (r *IngredientRepository) ListPurchasesByIngredients(ctx context.Context, ingredientIDs []string) ([]entity.PurchaseEntry, error) {
	if len(ingredientIDs) == 0 {
		return nil, nil
	}
	var entries []entity.PurchaseEntry
	err := r.db.WithContext(ctx).
		Where("ingredient_id IN ?", ingredientIDs).
		Find(&entries).Error
	return entries, err
}
