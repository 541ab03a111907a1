package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
)

// ComparisonService 对比引擎：基线快照 vs 当前计划状态
type ComparisonService struct {
	planRepo     *repository.PlanRepository
	snapshotRepo *repository.SnapshotRepository
}

// NewComparisonService 创建对比服务
func NewComparisonService(planRepo *repository.PlanRepository, snapshotRepo *repository.SnapshotRepository) *ComparisonService {
	return &ComparisonService{
		planRepo:     planRepo,
		snapshotRepo: snapshotRepo,
	}
}

// 对比分类常量
const (
	ChangeUnchanged = "unchanged"
	ChangeModified  = "modified"
	ChangeAdded     = "added"
	ChangeDropped   = "dropped"
)

// ComparisonItem 单配方的对比结果
type ComparisonItem struct {
	RecipeID         string   `json:"recipe_id"`
	RecipeName       string   `json:"recipe_name"`
	Change           string   `json:"change"`
	SnapshotQuantity *float64 `json:"snapshot_quantity,omitempty"`
	LiveQuantity     *float64 `json:"live_quantity,omitempty"`
}

// PlanComparison 计划对比视图
type PlanComparison struct {
	PlanID       string           `json:"plan_id"`
	HasSnapshot  bool             `json:"has_snapshot"`
	Items        []ComparisonItem `json:"items"`
	TotalChanges int              `json:"total_changes"`
}

// ComparePlan 对比基线快照与当前目标。没有基线（尚未进入生产）是正常结果，不是错误。
func (s *ComparisonService) ComparePlan(ctx context.Context, planID string) (*PlanComparison, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", planID, err)
	}

	result := &PlanComparison{
		PlanID: plan.ID,
		Items:  []ComparisonItem{},
	}
	if plan.BaselineSnapshotID == nil {
		return result, nil
	}

	baseline, err := s.snapshotRepo.FindByID(ctx, *plan.BaselineSnapshotID)
	if err != nil {
		return nil, fmt.Errorf("baseline snapshot %s: %w", *plan.BaselineSnapshotID, err)
	}
	payload, err := entity.DecodeSnapshotPayload(baseline.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode baseline payload: %w", err)
	}
	result.HasSnapshot = true

	result.Items = ClassifyChanges(payload.Components, plan.Targets)
	for _, item := range result.Items {
		if item.Change != ChangeUnchanged {
			result.TotalChanges++
		}
	}
	return result, nil
}

// ClassifyChanges 取基线条目与当前目标的并集，按配方ID（稳定标识，不是显示名）
// 逐一归类为 unchanged/modified/dropped/added。
func ClassifyChanges(baseline []entity.SnapshotComponent, live []entity.PlanTarget) []ComparisonItem {
	type side struct {
		name     string
		quantity float64
	}
	snapSide := make(map[string]side, len(baseline))
	for _, comp := range baseline {
		snapSide[comp.RefID] = side{name: comp.Name, quantity: comp.Quantity}
	}
	liveSide := make(map[string]side, len(live))
	for _, target := range live {
		name := target.RecipeID
		if target.Recipe != nil {
			name = target.Recipe.Name
		}
		liveSide[target.RecipeID] = side{name: name, quantity: target.RequestedQuantity}
	}

	ids := make([]string, 0, len(snapSide)+len(liveSide))
	for id := range snapSide {
		ids = append(ids, id)
	}
	for id := range liveSide {
		if _, ok := snapSide[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	items := make([]ComparisonItem, 0, len(ids))
	for _, id := range ids {
		snap, inSnap := snapSide[id]
		cur, inLive := liveSide[id]
		item := ComparisonItem{RecipeID: id}
		switch {
		case inSnap && inLive:
			item.RecipeName = cur.name
			sq, lq := snap.quantity, cur.quantity
			item.SnapshotQuantity = &sq
			item.LiveQuantity = &lq
			if sq == lq {
				item.Change = ChangeUnchanged
			} else {
				item.Change = ChangeModified
			}
		case inSnap:
			item.RecipeName = snap.name
			sq := snap.quantity
			item.SnapshotQuantity = &sq
			item.Change = ChangeDropped
		default:
			item.RecipeName = cur.name
			lq := cur.quantity
			item.LiveQuantity = &lq
			item.Change = ChangeAdded
		}
		items = append(items, item)
	}
	return items
}
