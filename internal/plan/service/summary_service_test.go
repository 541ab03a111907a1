package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/testutil"
	"github.com/shopspring/decimal"
)

// Walks the whole story: draft summary from live definitions, production summary
// from snapshots, amendment moves the live state, comparison shows the drift.
func TestPlanSummaryScenario(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	// Flour costs 0.50/g, cookies take 3 g per batch
	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-flour", 10, 0.50, time.Now())
	testutil.SeedRecipe(t, db, "rcp-cookie", "曲奇", 12)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-cookie", "ing-flour", 3, "g")

	plan, err := svc.Plan.CreatePlan(ctx, &CreatePlanInput{Name: "周末备货"}, "test-user-001")
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if _, err := svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-cookie", RequestedQuantity: 2}); err != nil {
		t.Fatalf("AddTarget failed: %v", err)
	}

	// Draft summary falls back to live definitions
	summary, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if len(summary.ShoppingList) != 1 {
		t.Fatalf("Expected 1 shopping line, got %d", len(summary.ShoppingList))
	}
	if summary.ShoppingList[0].Quantity != 6 {
		t.Errorf("Expected 6 g flour for 2 batches, got %v", summary.ShoppingList[0].Quantity)
	}
	if summary.RecipeBatches[0].FromSnapshot {
		t.Error("Draft summary should not claim snapshot provenance")
	}
	if !summary.TotalCost.Equal(decimal.NewFromFloat(3.00)) {
		t.Errorf("Expected total cost 3.00, got %s", summary.TotalCost)
	}
	if summary.AmendmentCount != 0 {
		t.Errorf("Expected no amendments yet, got %d", summary.AmendmentCount)
	}

	if _, err := svc.Plan.Lock(ctx, plan.ID); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	plan, err = svc.Plan.StartProduction(ctx, plan.ID)
	if err != nil {
		t.Fatalf("StartProduction failed: %v", err)
	}

	// In production the summary reads from the linked snapshot
	summary, err = svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if !summary.RecipeBatches[0].FromSnapshot {
		t.Error("Production summary should come from the snapshot")
	}
	if summary.ShoppingList[0].Quantity != 6 {
		t.Errorf("Expected 6 g flour, got %v", summary.ShoppingList[0].Quantity)
	}

	// Amendment bumps 2 -> 3 batches
	if _, err := svc.Amendment.Record(ctx, plan.ID, &RecordAmendmentInput{
		Type:          entity.AmendmentTypeAdjustQuantity,
		TargetID:      plan.Targets[0].ID,
		Quantity:      3,
		Justification: "客户加单",
	}, "test-user-001"); err != nil {
		t.Fatalf("Record amendment failed: %v", err)
	}

	summary, err = svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if summary.ShoppingList[0].Quantity != 9 {
		t.Errorf("Expected 9 g flour after amendment, got %v", summary.ShoppingList[0].Quantity)
	}
	if !summary.TotalCost.Equal(decimal.NewFromFloat(4.50)) {
		t.Errorf("Expected total cost 4.50 after amendment, got %s", summary.TotalCost)
	}
	if summary.AmendmentCount != 1 {
		t.Errorf("Expected 1 amendment in summary, got %d", summary.AmendmentCount)
	}

	// Comparison against the baseline shows the modified quantity
	comparison, err := svc.Comparison.ComparePlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ComparePlan failed: %v", err)
	}
	if !comparison.HasSnapshot {
		t.Fatal("Expected baseline snapshot in comparison")
	}
	if len(comparison.Items) != 1 || comparison.Items[0].Change != ChangeModified {
		t.Fatalf("Expected 1 modified item, got %+v", comparison.Items)
	}
	if *comparison.Items[0].SnapshotQuantity != 2 || *comparison.Items[0].LiveQuantity != 3 {
		t.Errorf("Expected quantities 2 -> 3, got %v -> %v",
			*comparison.Items[0].SnapshotQuantity, *comparison.Items[0].LiveQuantity)
	}
	if comparison.TotalChanges != 1 {
		t.Errorf("Expected 1 total change, got %d", comparison.TotalChanges)
	}
}

func TestPlanSummaryIncludesPackagingInShoppingOnly(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-flour", 10, 0.50, time.Now())
	testutil.SeedIngredient(t, db, "ing-box", "包装盒", "pcs", entity.IngredientCategoryPackaging)
	testutil.SeedPurchase(t, db, "pur-2", "ing-box", 100, 2.00, time.Now())
	testutil.SeedRecipe(t, db, "rcp-1", "曲奇", 12)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-1", "ing-flour", 3, "g")
	testutil.SeedPackagingComponent(t, db, "cmp-2", "rcp-1", "ing-box", 1, "pcs")

	plan, _ := svc.Plan.CreatePlan(ctx, &CreatePlanInput{Name: "含包装"}, "test-user-001")
	svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-1", RequestedQuantity: 2})

	summary, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if len(summary.ShoppingList) != 2 {
		t.Fatalf("Expected flour and box on shopping list, got %d lines", len(summary.ShoppingList))
	}
	// Packaging shows up on the shopping list but never in the cost
	if !summary.TotalCost.Equal(decimal.NewFromFloat(3.00)) {
		t.Errorf("Expected total cost 3.00 without packaging, got %s", summary.TotalCost)
	}
	if len(summary.IngredientTotals) != 1 {
		t.Errorf("Expected only raw ingredients in totals, got %d lines", len(summary.IngredientTotals))
	}
}

func TestPlanSummaryAggregatesSharedIngredients(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-flour", 10, 0.50, time.Now())
	testutil.SeedRecipe(t, db, "rcp-a", "曲奇", 12)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-a", "ing-flour", 3, "g")
	testutil.SeedRecipe(t, db, "rcp-b", "司康", 8)
	testutil.SeedIngredientComponent(t, db, "cmp-2", "rcp-b", "ing-flour", 5, "g")

	plan, _ := svc.Plan.CreatePlan(ctx, &CreatePlanInput{Name: "双配方"}, "test-user-001")
	svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-a", RequestedQuantity: 2})
	svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-b", RequestedQuantity: 1})

	summary, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if len(summary.ShoppingList) != 1 {
		t.Fatalf("Expected a single aggregated flour line, got %d", len(summary.ShoppingList))
	}
	// 2x3 + 1x5
	if summary.ShoppingList[0].Quantity != 11 {
		t.Errorf("Expected 11 g flour, got %v", summary.ShoppingList[0].Quantity)
	}
}

func TestPlanSummaryDeterministicBetweenCalls(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-a", "杏仁", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-a", 10, 1.25, time.Now())
	testutil.SeedIngredient(t, db, "ing-b", "黄油", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-2", "ing-b", 10, 0.75, time.Now())
	testutil.SeedRecipe(t, db, "rcp-1", "杏仁挞", 6)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-1", "ing-a", 2, "g")
	testutil.SeedIngredientComponent(t, db, "cmp-2", "rcp-1", "ing-b", 4, "g")

	plan, _ := svc.Plan.CreatePlan(ctx, &CreatePlanInput{Name: "确定性"}, "test-user-001")
	svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-1", RequestedQuantity: 3})

	first, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	second, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}

	if !reflect.DeepEqual(first.ShoppingList, second.ShoppingList) {
		t.Error("Shopping lists differ between calls with no intervening writes")
	}
	if !reflect.DeepEqual(first.IngredientTotals, second.IngredientTotals) {
		t.Error("Ingredient totals differ between calls with no intervening writes")
	}
	if !first.TotalCost.Equal(second.TotalCost) {
		t.Error("Total cost differs between calls with no intervening writes")
	}
}

func TestPlanSummaryExpandsSubRecipeIngredients(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	// Dough takes 4 g flour per batch; cookies take 2 batches of dough
	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-flour", 10, 0.50, time.Now())
	testutil.SeedRecipe(t, db, "rcp-dough", "面团", 1)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-dough", "ing-flour", 4, "g")
	testutil.SeedRecipe(t, db, "rcp-cookie", "曲奇", 12)
	testutil.SeedSubRecipeComponent(t, db, "cmp-2", "rcp-cookie", "rcp-dough", 2)

	plan, err := svc.Plan.CreatePlan(ctx, &CreatePlanInput{Name: "嵌套配方"}, "test-user-001")
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if _, err := svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-cookie", RequestedQuantity: 3}); err != nil {
		t.Fatalf("AddTarget failed: %v", err)
	}

	// Draft summary: the dough line must unfold to flour on the shopping list
	summary, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if len(summary.ShoppingList) != 1 {
		t.Fatalf("Expected 1 shopping line, got %+v", summary.ShoppingList)
	}
	// 3 batches x 2 dough x 4 g
	if summary.ShoppingList[0].IngredientID != "ing-flour" || summary.ShoppingList[0].Quantity != 24 {
		t.Errorf("Expected 24 g flour, got %+v", summary.ShoppingList[0])
	}
	if len(summary.IngredientTotals) != 1 {
		t.Fatalf("Expected 1 ingredient total, got %+v", summary.IngredientTotals)
	}
	if !summary.IngredientTotals[0].TotalCost.Equal(decimal.NewFromFloat(12.00)) {
		t.Errorf("Expected flour cost 12.00, got %s", summary.IngredientTotals[0].TotalCost)
	}
	// Batch cost goes through the dough line: 2 x 2.00 per cookie batch, 3 batches
	if !summary.TotalCost.Equal(decimal.NewFromFloat(12.00)) {
		t.Errorf("Expected total cost 12.00, got %s", summary.TotalCost)
	}

	// Snapshot path: the frozen payload only carries the dough line,
	// expansion still reaches the flour underneath
	if _, err := svc.Plan.Lock(ctx, plan.ID); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := svc.Plan.StartProduction(ctx, plan.ID); err != nil {
		t.Fatalf("StartProduction failed: %v", err)
	}
	summary, err = svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary failed: %v", err)
	}
	if !summary.RecipeBatches[0].FromSnapshot {
		t.Error("Production summary should come from the snapshot")
	}
	if len(summary.ShoppingList) != 1 || summary.ShoppingList[0].Quantity != 24 {
		t.Errorf("Expected 24 g flour from snapshot path, got %+v", summary.ShoppingList)
	}
}

func TestPlanSummarySkipsUnreadableSnapshotPayload(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-flour", 10, 0.50, time.Now())
	testutil.SeedRecipe(t, db, "rcp-a", "曲奇", 12)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-a", "ing-flour", 3, "g")
	testutil.SeedRecipe(t, db, "rcp-b", "司康", 8)
	testutil.SeedIngredientComponent(t, db, "cmp-2", "rcp-b", "ing-flour", 5, "g")

	plan, err := svc.Plan.CreatePlan(ctx, &CreatePlanInput{Name: "坏载荷"}, "test-user-001")
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if _, err := svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-a", RequestedQuantity: 2}); err != nil {
		t.Fatalf("AddTarget failed: %v", err)
	}
	if _, err := svc.Plan.AddTarget(ctx, plan.ID, &AddTargetInput{RecipeID: "rcp-b", RequestedQuantity: 1}); err != nil {
		t.Fatalf("AddTarget failed: %v", err)
	}
	if _, err := svc.Plan.Lock(ctx, plan.ID); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	plan, err = svc.Plan.StartProduction(ctx, plan.ID)
	if err != nil {
		t.Fatalf("StartProduction failed: %v", err)
	}

	// Break the first target's linked snapshot with a payload version
	// nobody understands
	var snapshotID string
	for _, target := range plan.Targets {
		if target.RecipeID == "rcp-a" {
			if target.LinkedSnapshotID == nil {
				t.Fatal("Target rcp-a has no linked snapshot")
			}
			snapshotID = *target.LinkedSnapshotID
		}
	}
	if err := db.Model(&entity.Snapshot{}).
		Where("id = ?", snapshotID).
		Update("payload", entity.JSONB{"version": 99}).Error; err != nil {
		t.Fatalf("Corrupting payload failed: %v", err)
	}

	summary, err := svc.Summary.PlanSummary(ctx, plan.ID)
	if err != nil {
		t.Fatalf("PlanSummary should not fail outright: %v", err)
	}
	if len(summary.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", summary.Warnings)
	}
	// The healthy target still makes it into the result
	if len(summary.RecipeBatches) != 1 || summary.RecipeBatches[0].RecipeID != "rcp-b" {
		t.Fatalf("Expected only rcp-b in batches, got %+v", summary.RecipeBatches)
	}
	if len(summary.ShoppingList) != 1 || summary.ShoppingList[0].Quantity != 5 {
		t.Errorf("Expected 5 g flour from the healthy target, got %+v", summary.ShoppingList)
	}
}
