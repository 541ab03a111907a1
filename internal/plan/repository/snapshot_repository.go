package repository

import (
	"context"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create 持久化快照
func (r *SnapshotRepository) Create(ctx context.Context, snap *entity.Snapshot) error {
	return r.db.WithContext(ctx).Create(snap).Error
}

// FindByID 根据ID查找快照
func (r *SnapshotRepository) FindByID(ctx context.Context, id string) (*entity.Snapshot, error) {
	var snap entity.Snapshot
	err := r.db.WithContext(ctx).First(&snap, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &snap, nil
}

// FindByRun 查找绑定到某次运行的快照
func (r *SnapshotRepository) FindByRun(ctx context.Context, runID string) (*entity.Snapshot, error) {
	var snap entity.Snapshot
	err := r.db.WithContext(ctx).First(&snap, "owning_run_id = ?", runID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &snap, nil
}

// FindLatestUnlinked 某目标最近一个未挂接运行的规划快照
func (r *SnapshotRepository) FindLatestUnlinked(ctx context.Context, targetType, targetID string) (*entity.Snapshot, error) {
	var snap entity.Snapshot
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND owning_run_id IS NULL", targetType, targetID).
		Order("created_at DESC").
		First(&snap).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &snap, nil
}

// ListByTarget 某目标的快照列表（新到旧）
func (r *SnapshotRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]entity.Snapshot, error) {
	var snaps []entity.Snapshot
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		Find(&snaps).Error
	return snaps, err
}

// SetOwningRun 仅更新运行挂接字段，载荷保持不变
func (r *SnapshotRepository) SetOwningRun(ctx context.Context, id, runID string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Snapshot{}).
		Where("id = ?", id).
		Update("owning_run_id", runID).Error
}
