package repository

import (
	"context"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"gorm.io/gorm"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建计划
func (r *PlanRepository) Create(ctx context.Context, plan *entity.ProductionPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

// FindByID 根据ID查找计划（含目标行及其配方）
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	var plan entity.ProductionPlan
	err := r.db.WithContext(ctx).
		Preload("Targets", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Targets.Recipe").
		First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

// FindByIDWithSnapshots 根据ID查找计划，批量预加载目标行的关联快照
// 汇总计算用单条查询拿齐全部输入，避免逐目标回库。
func (r *PlanRepository) FindByIDWithSnapshots(ctx context.Context, id string) (*entity.ProductionPlan, error) {
	var plan entity.ProductionPlan
	err := r.db.WithContext(ctx).
		Preload("Targets", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Targets.Recipe").
		Preload("Targets.LinkedSnapshot").
		First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

// List 计划列表
func (r *PlanRepository) List(ctx context.Context, status string) ([]entity.ProductionPlan, error) {
	var plans []entity.ProductionPlan
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&plans).Error
	return plans, err
}

// Update 更新计划
func (r *PlanRepository) Update(ctx context.Context, plan *entity.ProductionPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

// Delete 级联删除计划（目标行、修订记录与所属快照一并删除）
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan entity.ProductionPlan
		if err := tx.Preload("Targets").First(&plan, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		for _, target := range plan.Targets {
			if target.LinkedSnapshotID != nil {
				if err := tx.Delete(&entity.Snapshot{}, "id = ?", *target.LinkedSnapshotID).Error; err != nil {
					return err
				}
			}
		}
		if plan.BaselineSnapshotID != nil {
			if err := tx.Delete(&entity.Snapshot{}, "id = ?", *plan.BaselineSnapshotID).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&entity.PlanTarget{}, "plan_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entity.PlanAmendment{}, "plan_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.ProductionPlan{}, "id = ?", id).Error
	})
}

// CreateTarget 追加目标行
func (r *PlanRepository) CreateTarget(ctx context.Context, target *entity.PlanTarget) error {
	return r.db.WithContext(ctx).Create(target).Error
}

// FindTargetByID 根据ID查找目标行
func (r *PlanRepository) FindTargetByID(ctx context.Context, id string) (*entity.PlanTarget, error) {
	var target entity.PlanTarget
	err := r.db.WithContext(ctx).Preload("Recipe").First(&target, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &target, nil
}

// UpdateTarget 更新目标行
func (r *PlanRepository) UpdateTarget(ctx context.Context, target *entity.PlanTarget) error {
	return r.db.WithContext(ctx).Save(target).Error
}

// DeleteTarget 删除目标行
func (r *PlanRepository) DeleteTarget(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.PlanTarget{}, "id = ?", id).Error
}
