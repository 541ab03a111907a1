package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/shopspring/decimal"
)

// SnapshotService 快照管理：创建、读取不可变快照，规划快照可后补挂接到一次运行
type SnapshotService struct {
	snapshotRepo *repository.SnapshotRepository
	recipeRepo   *repository.RecipeRepository
	costingSvc   *CostingService
}

// NewSnapshotService 创建快照服务
func NewSnapshotService(snapshotRepo *repository.SnapshotRepository, recipeRepo *repository.RecipeRepository, costingSvc *CostingService) *SnapshotService {
	return &SnapshotService{
		snapshotRepo: snapshotRepo,
		recipeRepo:   recipeRepo,
		costingSvc:   costingSvc,
	}
}

// BuildRecipeSnapshot 读取配方当前定义，按 scaleFactor 缩放并为每个组件定价，
// 组装成待持久化的快照实体。不落库，调用方决定事务边界。
func (s *SnapshotService) BuildRecipeSnapshot(ctx context.Context, recipeID string, runID *string, scaleFactor float64, createdBy string) (*entity.Snapshot, error) {
	if scaleFactor <= 0 {
		return nil, &ValidationError{Msg: "缩放系数必须大于0"}
	}

	recipe, err := s.recipeRepo.FindByID(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", recipeID, err)
	}

	memo := NewCostMemo()
	payload := entity.SnapshotPayload{
		Version: entity.SnapshotPayloadVersion,
		Name:    recipe.Name,
	}
	for _, comp := range recipe.Components {
		// 载荷记录单批原始用量；ScaleFactor 存在快照行上，读取侧再乘
		sc := entity.SnapshotComponent{
			Kind:     comp.Kind,
			Quantity: comp.Quantity,
			Unit:     comp.Unit,
			UnitCost: decimal.Zero,
		}
		switch comp.Kind {
		case entity.ComponentKindIngredient, entity.ComponentKindPackaging:
			if comp.IngredientID == nil {
				return nil, &ValidationError{Msg: fmt.Sprintf("配方组件 %s 缺少原料引用", comp.ID)}
			}
			sc.RefID = *comp.IngredientID
			if comp.Ingredient != nil {
				sc.Name = comp.Ingredient.Name
			}
			if comp.Kind == entity.ComponentKindIngredient {
				cost, err := s.costingSvc.ingredientCostMemo(ctx, *comp.IngredientID, memo)
				if err != nil {
					return nil, err
				}
				sc.UnitCost = cost
			}
		case entity.ComponentKindSubRecipe:
			if comp.SubRecipeID == nil {
				return nil, &ValidationError{Msg: fmt.Sprintf("配方组件 %s 缺少子配方引用", comp.ID)}
			}
			sc.RefID = *comp.SubRecipeID
			sub, err := s.recipeRepo.FindByID(ctx, *comp.SubRecipeID)
			if err != nil {
				return nil, fmt.Errorf("sub recipe %s: %w", *comp.SubRecipeID, err)
			}
			sc.Name = sub.Name
			cost, err := s.costingSvc.RecipeCostMemo(ctx, *comp.SubRecipeID, memo)
			if err != nil {
				return nil, err
			}
			sc.UnitCost = cost
		default:
			return nil, &ValidationError{Msg: fmt.Sprintf("未知组件类型: %s", comp.Kind)}
		}
		payload.Components = append(payload.Components, sc)
	}

	doc, err := payload.ToJSONB()
	if err != nil {
		return nil, fmt.Errorf("encode snapshot payload: %w", err)
	}

	return &entity.Snapshot{
		ID:          newID(),
		TargetType:  entity.SnapshotTargetRecipe,
		TargetID:    recipeID,
		OwningRunID: runID,
		ScaleFactor: scaleFactor,
		Payload:     doc,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}, nil
}

// BuildPlanSnapshot 组装计划基线快照：每个目标一行，记录配方、需求批次数
// 和捕获时刻的单批成本，归属运行即计划本身。不落库，生产切换的事务负责持久化。
func (s *SnapshotService) BuildPlanSnapshot(ctx context.Context, plan *entity.ProductionPlan, memo CostMemo) (*entity.Snapshot, error) {
	payload := entity.SnapshotPayload{
		Version: entity.SnapshotPayloadVersion,
		Name:    plan.Name,
	}
	for i := range plan.Targets {
		target := &plan.Targets[i]
		batchCost, err := s.costingSvc.RecipeCostMemo(ctx, target.RecipeID, memo)
		if err != nil {
			return nil, err
		}
		name := target.RecipeID
		if target.Recipe != nil {
			name = target.Recipe.Name
		}
		payload.Components = append(payload.Components, entity.SnapshotComponent{
			RefID:    target.RecipeID,
			Kind:     "recipe",
			Name:     name,
			Quantity: target.RequestedQuantity,
			Unit:     "batch",
			UnitCost: batchCost,
		})
	}

	doc, err := payload.ToJSONB()
	if err != nil {
		return nil, fmt.Errorf("encode baseline payload: %w", err)
	}
	return &entity.Snapshot{
		ID:          newID(),
		TargetType:  entity.SnapshotTargetPlan,
		TargetID:    plan.ID,
		OwningRunID: &plan.ID,
		ScaleFactor: 1.0,
		Payload:     doc,
		CreatedBy:   plan.CreatedBy,
		CreatedAt:   time.Now(),
	}, nil
}

// CaptureRecipeSnapshot 创建并持久化配方快照。
// runID 为空创建规划快照，非空创建实例快照（同一运行只允许一个）。
func (s *SnapshotService) CaptureRecipeSnapshot(ctx context.Context, recipeID string, runID *string, scaleFactor float64, createdBy string) (*entity.Snapshot, error) {
	if runID != nil {
		if _, err := s.snapshotRepo.FindByRun(ctx, *runID); err == nil {
			return nil, &ConflictError{Msg: fmt.Sprintf("运行 %s 已存在实例快照", *runID)}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check run snapshot: %w", err)
		}
	}

	snap, err := s.BuildRecipeSnapshot(ctx, recipeID, runID, scaleFactor, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.snapshotRepo.Create(ctx, snap); err != nil {
		if runID != nil && isUniqueViolation(err) {
			return nil, &ConflictError{Msg: fmt.Sprintf("运行 %s 已存在实例快照", *runID)}
		}
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshot 按ID读取快照
func (s *SnapshotService) GetSnapshot(ctx context.Context, id string) (*entity.Snapshot, error) {
	return s.snapshotRepo.FindByID(ctx, id)
}

// FindForRun 读取绑定到某运行的快照
func (s *SnapshotService) FindForRun(ctx context.Context, runID string) (*entity.Snapshot, error) {
	return s.snapshotRepo.FindByRun(ctx, runID)
}

// ListRecipeSnapshots 某配方的快照列表
func (s *SnapshotService) ListRecipeSnapshots(ctx context.Context, recipeID string) ([]entity.Snapshot, error) {
	return s.snapshotRepo.ListByTarget(ctx, entity.SnapshotTargetRecipe, recipeID)
}

// LinkPlanningSnapshotToRun 将规划快照挂接到一次运行。
// 只改运行挂接字段，载荷不动；已挂接或运行已占用则冲突。
func (s *SnapshotService) LinkPlanningSnapshotToRun(ctx context.Context, snapshotID, runID string) error {
	snap, err := s.snapshotRepo.FindByID(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", snapshotID, err)
	}
	if snap.OwningRunID != nil {
		return &ConflictError{Msg: fmt.Sprintf("快照 %s 已挂接到运行 %s", snapshotID, *snap.OwningRunID)}
	}
	if _, err := s.snapshotRepo.FindByRun(ctx, runID); err == nil {
		return &ConflictError{Msg: fmt.Sprintf("运行 %s 已存在实例快照", runID)}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check run snapshot: %w", err)
	}
	if err := s.snapshotRepo.SetOwningRun(ctx, snapshotID, runID); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Msg: fmt.Sprintf("运行 %s 已存在实例快照", runID)}
		}
		return fmt.Errorf("link snapshot: %w", err)
	}
	return nil
}

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
