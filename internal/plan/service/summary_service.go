package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SummaryService 计划汇总：按需从不可变快照（缺失时回落到当前定义）重算，
// 不缓存、无陈旧标记——每次调用在结构上必然是最新的。
type SummaryService struct {
	planRepo      *repository.PlanRepository
	recipeRepo    *repository.RecipeRepository
	amendmentRepo *repository.AmendmentRepository
	costingSvc    *CostingService
	logger        *zap.Logger
}

// NewSummaryService 创建汇总服务
func NewSummaryService(planRepo *repository.PlanRepository, recipeRepo *repository.RecipeRepository, amendmentRepo *repository.AmendmentRepository, costingSvc *CostingService, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		planRepo:      planRepo,
		recipeRepo:    recipeRepo,
		amendmentRepo: amendmentRepo,
		costingSvc:    costingSvc,
		logger:        logger,
	}
}

// RecipeBatchLine 单配方批次需求
type RecipeBatchLine struct {
	TargetID     string          `json:"target_id"`
	RecipeID     string          `json:"recipe_id"`
	RecipeName   string          `json:"recipe_name"`
	Batches      float64         `json:"batches"`
	FromSnapshot bool            `json:"from_snapshot"`
	BatchCost    decimal.Decimal `json:"batch_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// ShoppingLine 购物清单行（按原料+单位聚合，含包装件）
type ShoppingLine struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
}

// IngredientTotalLine 单原料成本贡献
type IngredientTotalLine struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     float64         `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// PlanSummary 计划汇总视图
type PlanSummary struct {
	PlanID           string                `json:"plan_id"`
	PlanName         string                `json:"plan_name"`
	Status           string                `json:"status"`
	RecipeBatches    []RecipeBatchLine     `json:"recipe_batches"`
	ShoppingList     []ShoppingLine        `json:"shopping_list"`
	IngredientTotals []IngredientTotalLine `json:"ingredient_totals"`
	TotalCost        decimal.Decimal       `json:"total_cost"`
	AmendmentCount   int64                 `json:"amendment_count"`
	Warnings         []string              `json:"warnings,omitempty"`
}

// PlanSummary 计算计划汇总。目标行优先取关联快照，缺失回落到当前定义（记日志，不算错误）；
// 载荷不可解时跳过该目标并附带告警，不让整个汇总失败。
func (s *SummaryService) PlanSummary(ctx context.Context, planID string) (*PlanSummary, error) {
	plan, err := s.planRepo.FindByIDWithSnapshots(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", planID, err)
	}

	summary := &PlanSummary{
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		Status:           plan.Status,
		RecipeBatches:    []RecipeBatchLine{},
		ShoppingList:     []ShoppingLine{},
		IngredientTotals: []IngredientTotalLine{},
		TotalCost:        decimal.Zero,
	}

	memo := NewCostMemo()
	type aggKey struct {
		ingredientID string
		unit         string
	}
	shopping := make(map[aggKey]*ShoppingLine)
	totals := make(map[aggKey]*IngredientTotalLine)

	// 购物清单与单料成本的聚合口，原料行和包装行都经这里进清单，
	// 成本贡献只记原料行
	addLine := func(comp entity.SnapshotComponent, scaledQty float64) {
		key := aggKey{ingredientID: comp.RefID, unit: comp.Unit}
		if line, ok := shopping[key]; ok {
			line.Quantity += scaledQty
		} else {
			shopping[key] = &ShoppingLine{
				IngredientID: comp.RefID,
				Name:         comp.Name,
				Unit:         comp.Unit,
				Quantity:     scaledQty,
			}
		}
		if comp.Kind != entity.ComponentKindIngredient {
			return
		}
		if line, ok := totals[key]; ok {
			line.Quantity += scaledQty
			line.TotalCost = line.TotalCost.Add(comp.UnitCost.Mul(decimal.NewFromFloat(scaledQty)))
		} else {
			totals[key] = &IngredientTotalLine{
				IngredientID: comp.RefID,
				Name:         comp.Name,
				Unit:         comp.Unit,
				Quantity:     scaledQty,
				UnitCost:     comp.UnitCost,
				TotalCost:    comp.UnitCost.Mul(decimal.NewFromFloat(scaledQty)),
			}
		}
	}

	for i := range plan.Targets {
		target := &plan.Targets[i]

		components, recipeName, scale, fromSnapshot, err := s.resolveTarget(ctx, target, memo)
		if err != nil {
			s.logger.Warn("skipping plan target with unusable snapshot payload",
				zap.String("plan_id", plan.ID),
				zap.String("target_id", target.ID),
				zap.Error(err),
			)
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("目标 %s（配方 %s）的快照载荷无法解析，已跳过", target.ID, target.RecipeID))
			continue
		}

		multiplier := target.RequestedQuantity * scale
		batchCost := decimal.Zero
		for _, comp := range components {
			scaledQty := comp.Quantity * multiplier
			if comp.Kind != entity.ComponentKindPackaging {
				batchCost = batchCost.Add(comp.UnitCost.Mul(decimal.NewFromFloat(comp.Quantity)))
			}
			if comp.Kind == entity.ComponentKindSubRecipe {
				// 子配方行按其单批成本计价；采购需求按当前定义递归展开到原料层
				if err := s.expandSubRecipe(ctx, comp.RefID, scaledQty, memo, 0, addLine); err != nil {
					return nil, err
				}
				continue
			}
			addLine(comp, scaledQty)
		}

		batchCost = batchCost.Round(costPrecision)
		line := RecipeBatchLine{
			TargetID:     target.ID,
			RecipeID:     target.RecipeID,
			RecipeName:   recipeName,
			Batches:      multiplier,
			FromSnapshot: fromSnapshot,
			BatchCost:    batchCost,
			TotalCost:    batchCost.Mul(decimal.NewFromFloat(multiplier)).Round(costPrecision),
		}
		summary.RecipeBatches = append(summary.RecipeBatches, line)
		summary.TotalCost = summary.TotalCost.Add(line.TotalCost)
	}

	for _, line := range shopping {
		summary.ShoppingList = append(summary.ShoppingList, *line)
	}
	for _, line := range totals {
		line.TotalCost = line.TotalCost.Round(costPrecision)
		summary.IngredientTotals = append(summary.IngredientTotals, *line)
	}

	// 输出按稳定键排序，保证两次无写入间隔的调用结构一致
	sort.Slice(summary.ShoppingList, func(i, j int) bool {
		a, b := summary.ShoppingList[i], summary.ShoppingList[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.IngredientID != b.IngredientID {
			return a.IngredientID < b.IngredientID
		}
		return a.Unit < b.Unit
	})
	sort.Slice(summary.IngredientTotals, func(i, j int) bool {
		a, b := summary.IngredientTotals[i], summary.IngredientTotals[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.IngredientID != b.IngredientID {
			return a.IngredientID < b.IngredientID
		}
		return a.Unit < b.Unit
	})
	summary.TotalCost = summary.TotalCost.Round(costPrecision)

	count, err := s.amendmentRepo.CountByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("count amendments: %w", err)
	}
	summary.AmendmentCount = count

	return summary, nil
}

// expandSubRecipe 把子配方的采购需求递归展开到原料层（含嵌套子配方与包装件），
// 展开按当前定义，factor 已含上层用量与批次倍数
func (s *SummaryService) expandSubRecipe(ctx context.Context, recipeID string, factor float64, memo CostMemo, depth int, add func(entity.SnapshotComponent, float64)) error {
	if depth > maxComponentDepth {
		panic(fmt.Sprintf("recipe component graph exceeds depth %d at recipe %s: acyclicity invariant violated", maxComponentDepth, recipeID))
	}
	components, err := s.recipeRepo.ListComponents(ctx, recipeID)
	if err != nil {
		return fmt.Errorf("sub recipe %s: %w", recipeID, err)
	}
	if err := s.primeComponentCosts(ctx, components, memo); err != nil {
		return err
	}
	for _, comp := range components {
		switch comp.Kind {
		case entity.ComponentKindSubRecipe:
			if comp.SubRecipeID == nil {
				continue
			}
			if err := s.expandSubRecipe(ctx, *comp.SubRecipeID, factor*comp.Quantity, memo, depth+1, add); err != nil {
				return err
			}
		case entity.ComponentKindIngredient, entity.ComponentKindPackaging:
			if comp.IngredientID == nil {
				continue
			}
			sc := entity.SnapshotComponent{
				RefID:    *comp.IngredientID,
				Kind:     comp.Kind,
				Quantity: comp.Quantity,
				Unit:     comp.Unit,
				UnitCost: decimal.Zero,
			}
			if comp.Ingredient != nil {
				sc.Name = comp.Ingredient.Name
			}
			if comp.Kind == entity.ComponentKindIngredient {
				cost, err := s.costingSvc.ingredientCostMemo(ctx, *comp.IngredientID, memo)
				if err != nil {
					return err
				}
				sc.UnitCost = cost
			}
			add(sc, comp.Quantity*factor)
		}
	}
	return nil
}

// primeComponentCosts 一次查询预载组件引用原料的加权平均成本
func (s *SummaryService) primeComponentCosts(ctx context.Context, components []entity.RecipeComponent, memo CostMemo) error {
	ids := make([]string, 0, len(components))
	for _, comp := range components {
		if comp.Kind == entity.ComponentKindIngredient && comp.IngredientID != nil {
			ids = append(ids, *comp.IngredientID)
		}
	}
	return s.costingSvc.PrimeIngredientCosts(ctx, ids, memo)
}

// resolveTarget 目标行的组件来源：关联快照优先，否则当前定义
func (s *SummaryService) resolveTarget(ctx context.Context, target *entity.PlanTarget, memo CostMemo) ([]entity.SnapshotComponent, string, float64, bool, error) {
	if target.LinkedSnapshot != nil {
		payload, err := entity.DecodeSnapshotPayload(target.LinkedSnapshot.Payload)
		if err != nil {
			return nil, "", 0, false, fmt.Errorf("decode snapshot %s: %w", target.LinkedSnapshot.ID, err)
		}
		return payload.Components, payload.Name, target.LinkedSnapshot.ScaleFactor, true, nil
	}

	// 没有关联快照（草稿期汇总或生产中新增的目标）：回落到当前定义
	s.logger.Info("plan target priced from live definition",
		zap.String("plan_id", target.PlanID),
		zap.String("target_id", target.ID),
		zap.String("recipe_id", target.RecipeID),
	)
	recipe, err := s.recipeRepo.FindByID(ctx, target.RecipeID)
	if err != nil {
		return nil, "", 0, false, fmt.Errorf("recipe %s: %w", target.RecipeID, err)
	}
	if err := s.primeComponentCosts(ctx, recipe.Components, memo); err != nil {
		return nil, "", 0, false, err
	}
	components := make([]entity.SnapshotComponent, 0, len(recipe.Components))
	for _, comp := range recipe.Components {
		sc := entity.SnapshotComponent{
			Kind:     comp.Kind,
			Quantity: comp.Quantity,
			Unit:     comp.Unit,
			UnitCost: decimal.Zero,
		}
		switch comp.Kind {
		case entity.ComponentKindIngredient, entity.ComponentKindPackaging:
			if comp.IngredientID == nil {
				continue
			}
			sc.RefID = *comp.IngredientID
			if comp.Ingredient != nil {
				sc.Name = comp.Ingredient.Name
			}
			if comp.Kind == entity.ComponentKindIngredient {
				cost, err := s.costingSvc.ingredientCostMemo(ctx, *comp.IngredientID, memo)
				if err != nil {
					return nil, "", 0, false, err
				}
				sc.UnitCost = cost
			}
		case entity.ComponentKindSubRecipe:
			if comp.SubRecipeID == nil {
				continue
			}
			sc.RefID = *comp.SubRecipeID
			cost, err := s.costingSvc.RecipeCostMemo(ctx, *comp.SubRecipeID, memo)
			if err != nil {
				return nil, "", 0, false, err
			}
			sc.UnitCost = cost
		}
		components = append(components, sc)
	}
	return components, recipe.Name, 1.0, false, nil
}
