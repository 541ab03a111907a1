package service

import (
	"context"
	"fmt"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/shopspring/decimal"
)

// 成本内部精度：4位小数。展示层再收敛到2位。
const costPrecision = 4

// maxComponentDepth 组件图递归深度上限。配方图的无环性由录入侧保证，
// 这里只做防御：超限说明上游不变量已被破坏，直接panic，不在本层恢复。
const maxComponentDepth = 32

// CostingService 成本计算引擎：按需计算、无副作用、从不缓存结果
type CostingService struct {
	ingredientRepo *repository.IngredientRepository
	recipeRepo     *repository.RecipeRepository
}

// NewCostingService 创建成本计算引擎
func NewCostingService(ingredientRepo *repository.IngredientRepository, recipeRepo *repository.RecipeRepository) *CostingService {
	return &CostingService{
		ingredientRepo: ingredientRepo,
		recipeRepo:     recipeRepo,
	}
}

// CostMemo 单次调用范围内的成本备忘，避免同一汇总里重复回库。
// 只在一次公开操作内部存活，从不持久化。
type CostMemo map[string]decimal.Decimal

// NewCostMemo 创建调用级成本备忘
func NewCostMemo() CostMemo {
	return make(CostMemo)
}

// IngredientCost 原料当前成本 = 采购历史加权平均；无历史返回0（正常状态，非错误）
func (s *CostingService) IngredientCost(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	if _, err := s.ingredientRepo.FindByID(ctx, ingredientID); err != nil {
		return decimal.Zero, fmt.Errorf("ingredient %s: %w", ingredientID, err)
	}
	entries, err := s.ingredientRepo.ListPurchases(ctx, ingredientID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list purchases: %w", err)
	}
	return WeightedAverageCost(entries), nil
}

// RecipeCost 配方当前单批成本 = 各组件 数量×成本 的递归求和
func (s *CostingService) RecipeCost(ctx context.Context, recipeID string) (decimal.Decimal, error) {
	return s.RecipeCostMemo(ctx, recipeID, NewCostMemo())
}

// RecipeCostMemo 带调用级备忘的配方成本计算，供汇总在多目标间复用查询
func (s *CostingService) RecipeCostMemo(ctx context.Context, recipeID string, memo CostMemo) (decimal.Decimal, error) {
	return s.recipeCost(ctx, recipeID, memo, 0)
}

func (s *CostingService) recipeCost(ctx context.Context, recipeID string, memo CostMemo, depth int) (decimal.Decimal, error) {
	if depth > maxComponentDepth {
		panic(fmt.Sprintf("recipe component graph exceeds depth %d at recipe %s: acyclicity invariant violated", maxComponentDepth, recipeID))
	}
	if cost, ok := memo["recipe:"+recipeID]; ok {
		return cost, nil
	}

	recipe, err := s.recipeRepo.FindByID(ctx, recipeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("recipe %s: %w", recipeID, err)
	}

	total := decimal.Zero
	for _, comp := range recipe.Components {
		var cost decimal.Decimal
		switch comp.Kind {
		case entity.ComponentKindPackaging:
			// 包装件按策略不计入成本
			continue
		case entity.ComponentKindIngredient:
			if comp.IngredientID == nil {
				return decimal.Zero, &ValidationError{Msg: fmt.Sprintf("配方组件 %s 缺少原料引用", comp.ID)}
			}
			cost, err = s.ingredientCostMemo(ctx, *comp.IngredientID, memo)
		case entity.ComponentKindSubRecipe:
			if comp.SubRecipeID == nil {
				return decimal.Zero, &ValidationError{Msg: fmt.Sprintf("配方组件 %s 缺少子配方引用", comp.ID)}
			}
			cost, err = s.recipeCost(ctx, *comp.SubRecipeID, memo, depth+1)
		default:
			return decimal.Zero, &ValidationError{Msg: fmt.Sprintf("未知组件类型: %s", comp.Kind)}
		}
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(cost.Mul(decimal.NewFromFloat(comp.Quantity)))
	}

	result := total.Round(costPrecision)
	memo["recipe:"+recipeID] = result
	return result, nil
}

// PrimeIngredientCosts 批量预载一组原料的加权平均成本到备忘，
// 让汇总路径用一次查询取代逐原料回库。引用原料的存在性由组件外键保证。
func (s *CostingService) PrimeIngredientCosts(ctx context.Context, ingredientIDs []string, memo CostMemo) error {
	seen := make(map[string]bool, len(ingredientIDs))
	pending := make([]string, 0, len(ingredientIDs))
	for _, id := range ingredientIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := memo["ingredient:"+id]; !ok {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	entries, err := s.ingredientRepo.ListPurchasesByIngredients(ctx, pending)
	if err != nil {
		return fmt.Errorf("list purchases: %w", err)
	}
	grouped := make(map[string][]entity.PurchaseEntry, len(pending))
	for _, e := range entries {
		grouped[e.IngredientID] = append(grouped[e.IngredientID], e)
	}
	for _, id := range pending {
		memo["ingredient:"+id] = WeightedAverageCost(grouped[id])
	}
	return nil
}

func (s *CostingService) ingredientCostMemo(ctx context.Context, ingredientID string, memo CostMemo) (decimal.Decimal, error) {
	if cost, ok := memo["ingredient:"+ingredientID]; ok {
		return cost, nil
	}
	cost, err := s.IngredientCost(ctx, ingredientID)
	if err != nil {
		return decimal.Zero, err
	}
	memo["ingredient:"+ingredientID] = cost
	return cost, nil
}

// WeightedAverageCost 采购历史加权平均单价：Σ(单价×数量)/Σ数量，4位小数。
// 数量非正的记录不参与；没有合格记录时返回0。
func WeightedAverageCost(entries []entity.PurchaseEntry) decimal.Decimal {
	totalCost := decimal.Zero
	totalQty := decimal.Zero
	for _, e := range entries {
		if e.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromFloat(e.Quantity)
		totalCost = totalCost.Add(e.UnitCost.Mul(qty))
		totalQty = totalQty.Add(qty)
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalCost.DivRound(totalQty, costPrecision)
}
