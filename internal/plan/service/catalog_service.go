package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService 配方/原料目录。本核心只做读取与采购历史追加，
// 目录的成体系维护（导入、批量编辑）在外部工具里。
type CatalogService struct {
	ingredientRepo *repository.IngredientRepository
	recipeRepo     *repository.RecipeRepository
	db             *gorm.DB
}

// NewCatalogService 创建目录服务
func NewCatalogService(ingredientRepo *repository.IngredientRepository, recipeRepo *repository.RecipeRepository, db *gorm.DB) *CatalogService {
	return &CatalogService{
		ingredientRepo: ingredientRepo,
		recipeRepo:     recipeRepo,
		db:             db,
	}
}

// CreateIngredientInput 创建原料请求
type CreateIngredientInput struct {
	Name     string `json:"name" binding:"required"`
	Unit     string `json:"unit" binding:"required"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// RecordPurchaseInput 记录采购请求
type RecordPurchaseInput struct {
	Quantity    float64    `json:"quantity" binding:"required"`
	UnitCost    float64    `json:"unit_cost"`
	Supplier    string     `json:"supplier"`
	PurchasedAt *time.Time `json:"purchased_at"`
}

// CreateRecipeInput 创建配方请求
type CreateRecipeInput struct {
	Name       string                 `json:"name" binding:"required"`
	BatchYield float64                `json:"batch_yield"`
	YieldUnit  string                 `json:"yield_unit"`
	Notes      string                 `json:"notes"`
	Components []RecipeComponentInput `json:"components"`
}

// RecipeComponentInput 配方组件行输入
type RecipeComponentInput struct {
	Kind         string  `json:"kind" binding:"required"`
	IngredientID *string `json:"ingredient_id"`
	SubRecipeID  *string `json:"sub_recipe_id"`
	Quantity     float64 `json:"quantity" binding:"required"`
	Unit         string  `json:"unit" binding:"required"`
}

// CreateIngredient 创建原料
func (s *CatalogService) CreateIngredient(ctx context.Context, input *CreateIngredientInput) (*entity.Ingredient, error) {
	category := input.Category
	if category == "" {
		category = entity.IngredientCategoryRaw
	}
	if category != entity.IngredientCategoryRaw && category != entity.IngredientCategoryPackaging {
		return nil, &ValidationError{Msg: fmt.Sprintf("未知原料分类: %s", category)}
	}
	ing := &entity.Ingredient{
		ID:        newID(),
		Name:      input.Name,
		Unit:      input.Unit,
		Category:  category,
		Notes:     input.Notes,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.ingredientRepo.Create(ctx, ing); err != nil {
		return nil, fmt.Errorf("create ingredient: %w", err)
	}
	return ing, nil
}

// GetIngredient 获取原料
func (s *CatalogService) GetIngredient(ctx context.Context, id string) (*entity.Ingredient, error) {
	return s.ingredientRepo.FindByID(ctx, id)
}

// ListIngredients 原料列表
func (s *CatalogService) ListIngredients(ctx context.Context, category string) ([]entity.Ingredient, error) {
	return s.ingredientRepo.List(ctx, category)
}

// RecordPurchase 追加一条采购记录（不可变，加权平均成本的输入）
func (s *CatalogService) RecordPurchase(ctx context.Context, ingredientID string, input *RecordPurchaseInput) (*entity.PurchaseEntry, error) {
	if input.Quantity <= 0 {
		return nil, &ValidationError{Msg: "采购数量必须大于0"}
	}
	if input.UnitCost < 0 {
		return nil, &ValidationError{Msg: "采购单价不能为负"}
	}
	if _, err := s.ingredientRepo.FindByID(ctx, ingredientID); err != nil {
		return nil, fmt.Errorf("ingredient %s: %w", ingredientID, err)
	}

	purchasedAt := time.Now()
	if input.PurchasedAt != nil {
		purchasedAt = *input.PurchasedAt
	}
	entry := &entity.PurchaseEntry{
		ID:           newID(),
		IngredientID: ingredientID,
		Quantity:     input.Quantity,
		UnitCost:     decimal.NewFromFloat(input.UnitCost).Round(costPrecision),
		Supplier:     input.Supplier,
		PurchasedAt:  purchasedAt,
		CreatedAt:    time.Now(),
	}
	if err := s.ingredientRepo.CreatePurchase(ctx, entry); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	return entry, nil
}

// ListPurchases 某原料的采购历史
func (s *CatalogService) ListPurchases(ctx context.Context, ingredientID string) ([]entity.PurchaseEntry, error) {
	if _, err := s.ingredientRepo.FindByID(ctx, ingredientID); err != nil {
		return nil, fmt.Errorf("ingredient %s: %w", ingredientID, err)
	}
	return s.ingredientRepo.ListPurchases(ctx, ingredientID)
}

// CreateRecipe 创建配方及其组件行。配方头和组件在同一事务里落库，
// 任何一行组件校验失败则整个配方不存在。
func (s *CatalogService) CreateRecipe(ctx context.Context, input *CreateRecipeInput) (*entity.Recipe, error) {
	recipe := &entity.Recipe{
		ID:         newID(),
		Name:       input.Name,
		BatchYield: input.BatchYield,
		YieldUnit:  input.YieldUnit,
		Notes:      input.Notes,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if recipe.BatchYield <= 0 {
		recipe.BatchYield = 1
	}
	if recipe.YieldUnit == "" {
		recipe.YieldUnit = "pcs"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(recipe).Error; err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}

		for i, ci := range input.Components {
			comp := &entity.RecipeComponent{
				ID:        newID(),
				RecipeID:  recipe.ID,
				Kind:      ci.Kind,
				Quantity:  ci.Quantity,
				Unit:      ci.Unit,
				SortOrder: i,
			}
			switch ci.Kind {
			case entity.ComponentKindIngredient, entity.ComponentKindPackaging:
				if ci.IngredientID == nil || strings.TrimSpace(*ci.IngredientID) == "" {
					return &ValidationError{Msg: "原料/包装组件必须指定原料"}
				}
				var ing entity.Ingredient
				if err := tx.First(&ing, "id = ?", *ci.IngredientID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("ingredient %s: %w", *ci.IngredientID, repository.ErrNotFound)
					}
					return err
				}
				comp.IngredientID = ci.IngredientID
			case entity.ComponentKindSubRecipe:
				if ci.SubRecipeID == nil || strings.TrimSpace(*ci.SubRecipeID) == "" {
					return &ValidationError{Msg: "子配方组件必须指定配方"}
				}
				var sub entity.Recipe
				if err := tx.First(&sub, "id = ?", *ci.SubRecipeID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("sub recipe %s: %w", *ci.SubRecipeID, repository.ErrNotFound)
					}
					return err
				}
				comp.SubRecipeID = ci.SubRecipeID
			default:
				return &ValidationError{Msg: fmt.Sprintf("未知组件类型: %s", ci.Kind)}
			}
			if err := tx.Create(comp).Error; err != nil {
				return fmt.Errorf("create component: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.recipeRepo.FindByID(ctx, recipe.ID)
}

// GetRecipe 获取配方（含组件）
func (s *CatalogService) GetRecipe(ctx context.Context, id string) (*entity.Recipe, error) {
	return s.recipeRepo.FindByID(ctx, id)
}

// ListRecipes 配方列表
func (s *CatalogService) ListRecipes(ctx context.Context) ([]entity.Recipe, error) {
	return s.recipeRepo.List(ctx)
}
