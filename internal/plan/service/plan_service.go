package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PlanService 生产计划生命周期：draft → locked → in_production → completed。
// 进入生产的那一次转换在单事务里完成快照捕获/挂接与状态切换。
type PlanService struct {
	planRepo     *repository.PlanRepository
	recipeRepo   *repository.RecipeRepository
	snapshotRepo *repository.SnapshotRepository
	snapshotSvc  *SnapshotService
	db           *gorm.DB
	logger       *zap.Logger
}

// NewPlanService 创建计划服务
func NewPlanService(planRepo *repository.PlanRepository, recipeRepo *repository.RecipeRepository, snapshotRepo *repository.SnapshotRepository, snapshotSvc *SnapshotService, db *gorm.DB, logger *zap.Logger) *PlanService {
	return &PlanService{
		planRepo:     planRepo,
		recipeRepo:   recipeRepo,
		snapshotRepo: snapshotRepo,
		snapshotSvc:  snapshotSvc,
		db:           db,
		logger:       logger,
	}
}

// CreatePlanInput 创建计划请求
type CreatePlanInput struct {
	Name       string     `json:"name" binding:"required"`
	PlannedFor *time.Time `json:"planned_for"`
}

// AddTargetInput 追加目标行请求
type AddTargetInput struct {
	RecipeID          string  `json:"recipe_id" binding:"required"`
	RequestedQuantity float64 `json:"requested_quantity" binding:"required"`
}

// CreatePlan 创建计划（草稿状态）
func (s *PlanService) CreatePlan(ctx context.Context, input *CreatePlanInput, createdBy string) (*entity.ProductionPlan, error) {
	plan := &entity.ProductionPlan{
		ID:         newID(),
		Name:       input.Name,
		Status:     entity.PlanStatusDraft,
		PlannedFor: input.PlannedFor,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

// GetPlan 获取计划详情
func (s *PlanService) GetPlan(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	return s.planRepo.FindByID(ctx, id)
}

// ListPlans 计划列表
func (s *PlanService) ListPlans(ctx context.Context, status string) ([]entity.ProductionPlan, error) {
	return s.planRepo.List(ctx, status)
}

// DeletePlan 级联删除计划及其目标、修订与所属快照
func (s *PlanService) DeletePlan(ctx context.Context, id string) error {
	return s.planRepo.Delete(ctx, id)
}

// AddTarget 草稿计划追加目标行
func (s *PlanService) AddTarget(ctx context.Context, planID string, input *AddTargetInput) (*entity.PlanTarget, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", planID, err)
	}
	if plan.Status != entity.PlanStatusDraft {
		return nil, &StateConflictError{Current: plan.Status, Msg: "只有草稿计划才能直接增删目标，生产中请走修订记录"}
	}
	if input.RequestedQuantity <= 0 {
		return nil, &ValidationError{Msg: "需求批次数必须大于0"}
	}
	if _, err := s.recipeRepo.FindByID(ctx, input.RecipeID); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", input.RecipeID, err)
	}
	for _, t := range plan.Targets {
		if t.RecipeID == input.RecipeID {
			return nil, &ValidationError{Msg: "该配方已在计划中"}
		}
	}

	target := &entity.PlanTarget{
		ID:                newID(),
		PlanID:            planID,
		RecipeID:          input.RecipeID,
		RequestedQuantity: input.RequestedQuantity,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := s.planRepo.CreateTarget(ctx, target); err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	return target, nil
}

// UpdateTargetQuantity 草稿计划直接改量（锁定后必须走修订记录）
func (s *PlanService) UpdateTargetQuantity(ctx context.Context, planID, targetID string, quantity float64) (*entity.PlanTarget, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", planID, err)
	}
	if plan.Status != entity.PlanStatusDraft {
		return nil, &StateConflictError{Current: plan.Status, Msg: "锁定后的计划不能直接改量，生产中请走修订记录"}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Msg: "需求批次数必须大于0"}
	}
	target, err := s.planRepo.FindTargetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", targetID, err)
	}
	if target.PlanID != planID {
		return nil, &ValidationError{Msg: "目标不属于该计划"}
	}
	target.RequestedQuantity = quantity
	target.UpdatedAt = time.Now()
	if err := s.planRepo.UpdateTarget(ctx, target); err != nil {
		return nil, fmt.Errorf("update target: %w", err)
	}
	return target, nil
}

// RemoveTarget 草稿计划移除目标行
func (s *PlanService) RemoveTarget(ctx context.Context, planID, targetID string) error {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("plan %s: %w", planID, err)
	}
	if plan.Status != entity.PlanStatusDraft {
		return &StateConflictError{Current: plan.Status, Msg: "只有草稿计划才能直接移除目标，生产中请走修订记录"}
	}
	target, err := s.planRepo.FindTargetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("target %s: %w", targetID, err)
	}
	if target.PlanID != planID {
		return &ValidationError{Msg: "目标不属于该计划"}
	}
	return s.planRepo.DeleteTarget(ctx, targetID)
}

// Lock 锁定计划：draft → locked
func (s *PlanService) Lock(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	if plan.Status != entity.PlanStatusDraft {
		return nil, &StateConflictError{Current: plan.Status, Msg: "只有草稿计划才能锁定"}
	}
	if len(plan.Targets) == 0 {
		return nil, &ValidationError{Msg: "计划没有目标行，无法锁定"}
	}
	now := time.Now()
	plan.Status = entity.PlanStatusLocked
	plan.LockedAt = &now
	plan.UpdatedAt = now
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("lock plan: %w", err)
	}
	return plan, nil
}

// StartProduction 进入生产：locked → in_production。
// 每个目标复用其配方最近的未挂接规划快照，否则现场捕获实例快照；
// 另捕获一份计划基线快照供后续对比。全部写入与状态切换在一个事务里。
func (s *PlanService) StartProduction(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	if plan.Status != entity.PlanStatusLocked {
		return nil, &StateConflictError{Current: plan.Status, Msg: "只有锁定状态的计划才能进入生产"}
	}

	// 事务外完成读取与定价，事务内只做写入
	type targetLink struct {
		target *entity.PlanTarget
		reuse  *entity.Snapshot // 待挂接的规划快照
		fresh  *entity.Snapshot // 待创建的实例快照
	}
	memo := NewCostMemo()
	links := make([]targetLink, 0, len(plan.Targets))
	for i := range plan.Targets {
		target := &plan.Targets[i]
		link := targetLink{target: target}

		planned, err := s.snapshotRepo.FindLatestUnlinked(ctx, entity.SnapshotTargetRecipe, target.RecipeID)
		switch {
		case err == nil:
			link.reuse = planned
		case errors.Is(err, repository.ErrNotFound):
			snap, err := s.snapshotSvc.BuildRecipeSnapshot(ctx, target.RecipeID, &target.ID, 1.0, plan.CreatedBy)
			if err != nil {
				return nil, err
			}
			link.fresh = snap
		default:
			return nil, fmt.Errorf("find planning snapshot: %w", err)
		}
		links = append(links, link)
	}

	baselineSnap, err := s.snapshotSvc.BuildPlanSnapshot(ctx, plan, memo)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, link := range links {
			var snapshotID string
			if link.reuse != nil {
				// 只动运行挂接字段；WHERE 上带 IS NULL 防止并发窗口里被别的运行抢走
				res := tx.Model(&entity.Snapshot{}).
					Where("id = ? AND owning_run_id IS NULL", link.reuse.ID).
					Update("owning_run_id", link.target.ID)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return &ConflictError{Msg: fmt.Sprintf("规划快照 %s 已被其他运行挂接", link.reuse.ID)}
				}
				snapshotID = link.reuse.ID
			} else {
				if err := tx.Create(link.fresh).Error; err != nil {
					return err
				}
				snapshotID = link.fresh.ID
			}
			res := tx.Model(&entity.PlanTarget{}).
				Where("id = ? AND linked_snapshot_id IS NULL", link.target.ID).
				Update("linked_snapshot_id", snapshotID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &ConflictError{Msg: fmt.Sprintf("目标 %s 已挂接过快照", link.target.ID)}
			}
		}

		if err := tx.Create(baselineSnap).Error; err != nil {
			if isUniqueViolation(err) {
				return &ConflictError{Msg: fmt.Sprintf("计划 %s 已存在基线快照", plan.ID)}
			}
			return err
		}

		return tx.Model(&entity.ProductionPlan{}).
			Where("id = ?", plan.ID).
			Updates(map[string]interface{}{
				"status":               entity.PlanStatusInProduction,
				"baseline_snapshot_id": baselineSnap.ID,
				"production_at":        now,
				"updated_at":           now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan entered production",
		zap.String("plan_id", plan.ID),
		zap.Int("targets", len(links)),
		zap.String("baseline_snapshot_id", baselineSnap.ID),
	)
	return s.planRepo.FindByID(ctx, id)
}

// Complete 完工：in_production → completed
func (s *PlanService) Complete(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	if plan.Status != entity.PlanStatusInProduction {
		return nil, &StateConflictError{Current: plan.Status, Msg: "只有生产中的计划才能完工"}
	}
	now := time.Now()
	plan.Status = entity.PlanStatusCompleted
	plan.CompletedAt = &now
	plan.UpdatedAt = now
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("complete plan: %w", err)
	}
	return plan, nil
}
