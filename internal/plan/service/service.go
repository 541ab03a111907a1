package service

import (
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Catalog    *CatalogService
	Costing    *CostingService
	Snapshot   *SnapshotService
	Plan       *PlanService
	Amendment  *AmendmentService
	Summary    *SummaryService
	Comparison *ComparisonService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, logger *zap.Logger) *Services {
	costingSvc := NewCostingService(repos.Ingredient, repos.Recipe)
	snapshotSvc := NewSnapshotService(repos.Snapshot, repos.Recipe, costingSvc)

	return &Services{
		Catalog:    NewCatalogService(repos.Ingredient, repos.Recipe, db),
		Costing:    costingSvc,
		Snapshot:   snapshotSvc,
		Plan:       NewPlanService(repos.Plan, repos.Recipe, repos.Snapshot, snapshotSvc, db, logger),
		Amendment:  NewAmendmentService(repos.Amendment, repos.Plan, db),
		Summary:    NewSummaryService(repos.Plan, repos.Recipe, repos.Amendment, costingSvc, logger),
		Comparison: NewComparisonService(repos.Plan, repos.Snapshot),
	}
}
