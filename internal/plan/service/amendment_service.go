package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"gorm.io/gorm"
)

// AmendmentService 修订日志：仅追加、状态门控、必须说明理由。
// 对计划目标的实际改动与日志写入在同一事务里，要么都成要么都不成。
type AmendmentService struct {
	amendmentRepo *repository.AmendmentRepository
	planRepo      *repository.PlanRepository
	db            *gorm.DB
}

// NewAmendmentService 创建修订服务
func NewAmendmentService(amendmentRepo *repository.AmendmentRepository, planRepo *repository.PlanRepository, db *gorm.DB) *AmendmentService {
	return &AmendmentService{
		amendmentRepo: amendmentRepo,
		planRepo:      planRepo,
		db:            db,
	}
}

// RecordAmendmentInput 记录修订请求
type RecordAmendmentInput struct {
	Type          string  `json:"type" binding:"required"`
	TargetID      string  `json:"target_id"`
	RecipeID      string  `json:"recipe_id"`
	Quantity      float64 `json:"quantity"`
	Justification string  `json:"justification"`
}

// Record 记录一次修订并同事务修改计划现状。
// 前置条件：计划处于生产中；理由非空；按类型做结构检查。
func (s *AmendmentService) Record(ctx context.Context, planID string, input *RecordAmendmentInput, createdBy string) (*entity.PlanAmendment, error) {
	if strings.TrimSpace(input.Justification) == "" {
		return nil, &ValidationError{Msg: "修订必须填写理由"}
	}

	var record *entity.PlanAmendment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan entity.ProductionPlan
		if err := tx.First(&plan, "id = ?", planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("plan %s: %w", planID, repository.ErrNotFound)
			}
			return err
		}
		if plan.Status != entity.PlanStatusInProduction {
			return &StateConflictError{Current: plan.Status, Msg: "只有生产中的计划才能记录修订"}
		}

		now := time.Now()
		var payload entity.JSONB

		switch input.Type {
		case entity.AmendmentTypeAdjustQuantity:
			if input.Quantity <= 0 {
				return &ValidationError{Msg: "需求批次数必须大于0"}
			}
			var target entity.PlanTarget
			if err := tx.First(&target, "id = ? AND plan_id = ?", input.TargetID, planID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ValidationError{Msg: "待调整的目标不在计划中"}
				}
				return err
			}
			payload = entity.JSONB{
				"target_id": target.ID,
				"recipe_id": target.RecipeID,
				"before":    target.RequestedQuantity,
				"after":     input.Quantity,
			}
			if err := tx.Model(&entity.PlanTarget{}).
				Where("id = ?", target.ID).
				Updates(map[string]interface{}{
					"requested_quantity": input.Quantity,
					"updated_at":         now,
				}).Error; err != nil {
				return err
			}

		case entity.AmendmentTypeRemoveItem:
			var target entity.PlanTarget
			if err := tx.First(&target, "id = ? AND plan_id = ?", input.TargetID, planID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ValidationError{Msg: "待移除的目标不在计划中"}
				}
				return err
			}
			payload = entity.JSONB{
				"target_id": target.ID,
				"recipe_id": target.RecipeID,
				"before":    target.RequestedQuantity,
				"after":     nil,
			}
			if err := tx.Delete(&entity.PlanTarget{}, "id = ?", target.ID).Error; err != nil {
				return err
			}

		case entity.AmendmentTypeAddItem:
			if input.RecipeID == "" {
				return &ValidationError{Msg: "新增目标必须指定配方"}
			}
			if input.Quantity <= 0 {
				return &ValidationError{Msg: "需求批次数必须大于0"}
			}
			var recipe entity.Recipe
			if err := tx.First(&recipe, "id = ?", input.RecipeID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("recipe %s: %w", input.RecipeID, repository.ErrNotFound)
				}
				return err
			}
			var existing int64
			if err := tx.Model(&entity.PlanTarget{}).
				Where("plan_id = ? AND recipe_id = ?", planID, input.RecipeID).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return &ValidationError{Msg: "该配方已在计划中，请改用调量修订"}
			}
			// 生产中追加的目标没有关联快照，汇总会回落到当前定义
			target := &entity.PlanTarget{
				ID:                newID(),
				PlanID:            planID,
				RecipeID:          input.RecipeID,
				RequestedQuantity: input.Quantity,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := tx.Create(target).Error; err != nil {
				return err
			}
			payload = entity.JSONB{
				"target_id": target.ID,
				"recipe_id": input.RecipeID,
				"before":    nil,
				"after":     input.Quantity,
			}

		default:
			return &ValidationError{Msg: fmt.Sprintf("未知修订类型: %s", input.Type)}
		}

		record = &entity.PlanAmendment{
			ID:            newID(),
			PlanID:        planID,
			Type:          input.Type,
			Payload:       payload,
			Justification: input.Justification,
			CreatedBy:     createdBy,
			CreatedAt:     now,
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List 某计划的修订记录，旧到新，已返回的条目不再变化
func (s *AmendmentService) List(ctx context.Context, planID string) ([]entity.PlanAmendment, error) {
	if _, err := s.planRepo.FindByID(ctx, planID); err != nil {
		return nil, fmt.Errorf("plan %s: %w", planID, err)
	}
	return s.amendmentRepo.ListByPlan(ctx, planID)
}
