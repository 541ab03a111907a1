package service

import (
	"context"
	"testing"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/testutil"
)

func TestClassifyChanges(t *testing.T) {
	baseline := []entity.SnapshotComponent{
		{RefID: "rcp-x", Kind: "recipe", Name: "X", Quantity: 5},
		{RefID: "rcp-y", Kind: "recipe", Name: "Y", Quantity: 3},
	}
	live := []entity.PlanTarget{
		{RecipeID: "rcp-y", RequestedQuantity: 3},
		{RecipeID: "rcp-z", RequestedQuantity: 2},
	}

	items := ClassifyChanges(baseline, live)
	if len(items) != 3 {
		t.Fatalf("Expected 3 comparison items, got %d", len(items))
	}

	byID := make(map[string]ComparisonItem)
	for _, item := range items {
		byID[item.RecipeID] = item
	}

	if byID["rcp-x"].Change != ChangeDropped {
		t.Errorf("Expected rcp-x dropped, got %s", byID["rcp-x"].Change)
	}
	if byID["rcp-x"].SnapshotQuantity == nil || *byID["rcp-x"].SnapshotQuantity != 5 {
		t.Errorf("Expected rcp-x snapshot quantity 5, got %v", byID["rcp-x"].SnapshotQuantity)
	}
	if byID["rcp-x"].LiveQuantity != nil {
		t.Errorf("Expected rcp-x live quantity nil, got %v", *byID["rcp-x"].LiveQuantity)
	}

	if byID["rcp-y"].Change != ChangeUnchanged {
		t.Errorf("Expected rcp-y unchanged, got %s", byID["rcp-y"].Change)
	}

	if byID["rcp-z"].Change != ChangeAdded {
		t.Errorf("Expected rcp-z added, got %s", byID["rcp-z"].Change)
	}
	if byID["rcp-z"].SnapshotQuantity != nil {
		t.Errorf("Expected rcp-z snapshot quantity nil, got %v", *byID["rcp-z"].SnapshotQuantity)
	}
}

func TestClassifyChangesModifiedQuantity(t *testing.T) {
	baseline := []entity.SnapshotComponent{
		{RefID: "rcp-a", Kind: "recipe", Name: "A", Quantity: 2},
	}
	live := []entity.PlanTarget{
		{RecipeID: "rcp-a", RequestedQuantity: 3},
	}

	items := ClassifyChanges(baseline, live)
	if len(items) != 1 {
		t.Fatalf("Expected 1 comparison item, got %d", len(items))
	}
	if items[0].Change != ChangeModified {
		t.Errorf("Expected modified, got %s", items[0].Change)
	}
	if *items[0].SnapshotQuantity != 2 || *items[0].LiveQuantity != 3 {
		t.Errorf("Expected quantities 2 -> 3, got %v -> %v",
			*items[0].SnapshotQuantity, *items[0].LiveQuantity)
	}
}

func TestClassifyChangesOrderIsStable(t *testing.T) {
	baseline := []entity.SnapshotComponent{
		{RefID: "rcp-c", Quantity: 1},
		{RefID: "rcp-a", Quantity: 1},
	}
	live := []entity.PlanTarget{
		{RecipeID: "rcp-b", RequestedQuantity: 1},
	}

	items := ClassifyChanges(baseline, live)
	wantOrder := []string{"rcp-a", "rcp-b", "rcp-c"}
	for i, want := range wantOrder {
		if items[i].RecipeID != want {
			t.Errorf("Expected item %d to be %s, got %s", i, want, items[i].RecipeID)
		}
	}
}

func TestComparePlanWithoutBaseline(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedPlan(t, db, "plan-1", "周末计划", entity.PlanStatusDraft, "test-user-001")

	result, err := svc.Comparison.ComparePlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("ComparePlan failed: %v", err)
	}
	if result.HasSnapshot {
		t.Error("Expected HasSnapshot false for plan that never entered production")
	}
	if len(result.Items) != 0 {
		t.Errorf("Expected no items, got %d", len(result.Items))
	}
	if result.TotalChanges != 0 {
		t.Errorf("Expected 0 total changes, got %d", result.TotalChanges)
	}
}
