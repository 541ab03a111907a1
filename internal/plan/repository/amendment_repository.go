package repository

import (
	"context"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"gorm.io/gorm"
)

type AmendmentRepository struct {
	db *gorm.DB
}

func NewAmendmentRepository(db *gorm.DB) *AmendmentRepository {
	return &AmendmentRepository{db: db}
}

// Create 追加修订记录（只插入，从不更新或删除单条记录）
func (r *AmendmentRepository) Create(ctx context.Context, a *entity.PlanAmendment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// ListByPlan 某计划的修订记录，旧到新，次序稳定
func (r *AmendmentRepository) ListByPlan(ctx context.Context, planID string) ([]entity.PlanAmendment, error) {
	var amendments []entity.PlanAmendment
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC, id ASC").
		Find(&amendments).Error
	return amendments, err
}

// CountByPlan 某计划的修订数量
func (r *AmendmentRepository) CountByPlan(ctx context.Context, planID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.PlanAmendment{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}
