package service

import (
	"context"
	"testing"
	"time"

	"github.com/ovenbird/bakeplan/internal/plan/entity"
	"github.com/ovenbird/bakeplan/internal/plan/testutil"
	"github.com/shopspring/decimal"
)

func TestWeightedAverageCost(t *testing.T) {
	entries := []entity.PurchaseEntry{
		{Quantity: 10, UnitCost: decimal.NewFromFloat(1.00)},
		{Quantity: 5, UnitCost: decimal.NewFromFloat(2.50)},
	}
	got := WeightedAverageCost(entries)
	want := decimal.NewFromFloat(1.50)
	if !got.Equal(want) {
		t.Errorf("Expected weighted average %s, got %s", want, got)
	}
}

func TestWeightedAverageCostSkipsNonPositiveQuantities(t *testing.T) {
	entries := []entity.PurchaseEntry{
		{Quantity: 0, UnitCost: decimal.NewFromFloat(99.99)},
		{Quantity: -3, UnitCost: decimal.NewFromFloat(99.99)},
		{Quantity: 4, UnitCost: decimal.NewFromFloat(2.00)},
	}
	got := WeightedAverageCost(entries)
	want := decimal.NewFromFloat(2.00)
	if !got.Equal(want) {
		t.Errorf("Expected weighted average %s, got %s", want, got)
	}
}

func TestWeightedAverageCostEmptyHistory(t *testing.T) {
	if got := WeightedAverageCost(nil); !got.IsZero() {
		t.Errorf("Expected zero cost for empty history, got %s", got)
	}
}

func TestIngredientCostNoHistory(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)

	cost, err := svc.Costing.IngredientCost(ctx, "ing-flour")
	if err != nil {
		t.Fatalf("IngredientCost failed: %v", err)
	}
	if !cost.IsZero() {
		t.Errorf("Expected zero cost for ingredient without purchases, got %s", cost)
	}
}

func TestIngredientCostWeightedAverage(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-butter", "黄油", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-butter", 10, 1.00, time.Now().Add(-48*time.Hour))
	testutil.SeedPurchase(t, db, "pur-2", "ing-butter", 5, 2.50, time.Now().Add(-24*time.Hour))

	cost, err := svc.Costing.IngredientCost(ctx, "ing-butter")
	if err != nil {
		t.Fatalf("IngredientCost failed: %v", err)
	}
	want := decimal.NewFromFloat(1.50)
	if !cost.Equal(want) {
		t.Errorf("Expected cost %s, got %s", want, cost)
	}
}

func TestIngredientCostReflectsNewPurchase(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-sugar", "白糖", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-sugar", 10, 1.00, time.Now().Add(-48*time.Hour))

	before, err := svc.Costing.IngredientCost(ctx, "ing-sugar")
	if err != nil {
		t.Fatalf("IngredientCost failed: %v", err)
	}
	if !before.Equal(decimal.NewFromFloat(1.00)) {
		t.Fatalf("Expected cost 1.00 before new purchase, got %s", before)
	}

	testutil.SeedPurchase(t, db, "pur-2", "ing-sugar", 10, 3.00, time.Now())

	after, err := svc.Costing.IngredientCost(ctx, "ing-sugar")
	if err != nil {
		t.Fatalf("IngredientCost failed: %v", err)
	}
	if !after.Equal(decimal.NewFromFloat(2.00)) {
		t.Errorf("Expected cost 2.00 after new purchase, got %s", after)
	}
}

func TestRecipeCostRecursive(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	// i1 costs 1.00, i2 costs 4.00
	testutil.SeedIngredient(t, db, "ing-1", "原料一", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-1", 10, 1.00, time.Now())
	testutil.SeedIngredient(t, db, "ing-2", "原料二", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-2", "ing-2", 10, 4.00, time.Now())

	// sub recipe: 3 x ing-1 = 3.00 per batch
	testutil.SeedRecipe(t, db, "rcp-sub", "馅料", 1)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-sub", "ing-1", 3, "g")

	// parent: 2 x sub (6.00) + 1 x ing-2 (4.00) = 10.00
	testutil.SeedRecipe(t, db, "rcp-main", "酥饼", 1)
	testutil.SeedSubRecipeComponent(t, db, "cmp-2", "rcp-main", "rcp-sub", 2)
	testutil.SeedIngredientComponent(t, db, "cmp-3", "rcp-main", "ing-2", 1, "g")

	cost, err := svc.Costing.RecipeCost(ctx, "rcp-main")
	if err != nil {
		t.Fatalf("RecipeCost failed: %v", err)
	}
	want := decimal.NewFromFloat(10.00)
	if !cost.Equal(want) {
		t.Errorf("Expected recipe cost %s, got %s", want, cost)
	}
}

func TestRecipeCostExcludesPackaging(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-flour", "面粉", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-flour", 10, 0.50, time.Now())
	testutil.SeedIngredient(t, db, "ing-box", "包装盒", "pcs", entity.IngredientCategoryPackaging)
	testutil.SeedPurchase(t, db, "pur-2", "ing-box", 100, 2.00, time.Now())

	testutil.SeedRecipe(t, db, "rcp-1", "饼干", 12)
	testutil.SeedIngredientComponent(t, db, "cmp-1", "rcp-1", "ing-flour", 4, "g")
	testutil.SeedPackagingComponent(t, db, "cmp-2", "rcp-1", "ing-box", 1, "pcs")

	cost, err := svc.Costing.RecipeCost(ctx, "rcp-1")
	if err != nil {
		t.Fatalf("RecipeCost failed: %v", err)
	}
	// 4 x 0.50; the box must not contribute
	want := decimal.NewFromFloat(2.00)
	if !cost.Equal(want) {
		t.Errorf("Expected recipe cost %s, got %s", want, cost)
	}
}

func TestRecipeCostPanicsOnCycle(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	// Mutually referencing recipes, inserted behind the service's back;
	// the entry path rejects such input, so the guard must not swallow it
	testutil.SeedRecipe(t, db, "rcp-a", "面团A", 1)
	testutil.SeedRecipe(t, db, "rcp-b", "面团B", 1)
	testutil.SeedSubRecipeComponent(t, db, "cmp-1", "rcp-a", "rcp-b", 1)
	testutil.SeedSubRecipeComponent(t, db, "cmp-2", "rcp-b", "rcp-a", 1)

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic on cyclic recipe graph")
		}
	}()
	if _, err := svc.Costing.RecipeCost(ctx, "rcp-a"); err != nil {
		t.Fatalf("Expected panic, got error instead: %v", err)
	}
	t.Fatal("RecipeCost returned normally on cyclic recipe graph")
}

func TestPrimeIngredientCostsBatch(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	testutil.SeedIngredient(t, db, "ing-1", "杏仁", "g", entity.IngredientCategoryRaw)
	testutil.SeedPurchase(t, db, "pur-1", "ing-1", 10, 1.00, time.Now().Add(-48*time.Hour))
	testutil.SeedPurchase(t, db, "pur-2", "ing-1", 5, 2.50, time.Now())
	testutil.SeedIngredient(t, db, "ing-2", "黄油", "g", entity.IngredientCategoryRaw)

	memo := NewCostMemo()
	if err := svc.Costing.PrimeIngredientCosts(ctx, []string{"ing-1", "ing-2", "ing-1"}, memo); err != nil {
		t.Fatalf("PrimeIngredientCosts failed: %v", err)
	}

	if !memo["ingredient:ing-1"].Equal(decimal.NewFromFloat(1.50)) {
		t.Errorf("Expected primed cost 1.50 for ing-1, got %s", memo["ingredient:ing-1"])
	}
	// No purchase history primes to zero, same as the single lookup
	if !memo["ingredient:ing-2"].IsZero() {
		t.Errorf("Expected primed cost 0 for ing-2, got %s", memo["ingredient:ing-2"])
	}
}
