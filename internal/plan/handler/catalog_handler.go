package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/service"
)

type CatalogHandler struct {
	svc        *service.CatalogService
	costingSvc *service.CostingService
}

func NewCatalogHandler(svc *service.CatalogService, costingSvc *service.CostingService) *CatalogHandler {
	return &CatalogHandler{svc: svc, costingSvc: costingSvc}
}

// CreateIngredient POST /ingredients
func (h *CatalogHandler) CreateIngredient(c *gin.Context) {
	var input service.CreateIngredientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	ing, err := h.svc.CreateIngredient(c.Request.Context(), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, ing)
}

// GetIngredient GET /ingredients/:id
func (h *CatalogHandler) GetIngredient(c *gin.Context) {
	ing, err := h.svc.GetIngredient(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, ing)
}

// ListIngredients GET /ingredients
func (h *CatalogHandler) ListIngredients(c *gin.Context) {
	ings, err := h.svc.ListIngredients(c.Request.Context(), c.Query("category"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, ings)
}

// GetIngredientCost GET /ingredients/:id/cost
// 每次都从采购历史现算加权平均，不走任何缓存
func (h *CatalogHandler) GetIngredientCost(c *gin.Context) {
	cost, err := h.costingSvc.IngredientCost(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"ingredient_id": c.Param("id"),
		"cost":          cost,
		"cost_display":  cost.Round(2).StringFixed(2),
	})
}

// RecordPurchase POST /ingredients/:id/purchases
func (h *CatalogHandler) RecordPurchase(c *gin.Context) {
	var input service.RecordPurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	entry, err := h.svc.RecordPurchase(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, entry)
}

// ListPurchases GET /ingredients/:id/purchases
func (h *CatalogHandler) ListPurchases(c *gin.Context) {
	entries, err := h.svc.ListPurchases(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, entries)
}

// CreateRecipe POST /recipes
func (h *CatalogHandler) CreateRecipe(c *gin.Context) {
	var input service.CreateRecipeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	recipe, err := h.svc.CreateRecipe(c.Request.Context(), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, recipe)
}

// GetRecipe GET /recipes/:id
func (h *CatalogHandler) GetRecipe(c *gin.Context) {
	recipe, err := h.svc.GetRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, recipe)
}

// ListRecipes GET /recipes
func (h *CatalogHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.svc.ListRecipes(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, recipes)
}

// GetRecipeCost GET /recipes/:id/cost
// 组件图递归求和，现算现返回
func (h *CatalogHandler) GetRecipeCost(c *gin.Context) {
	cost, err := h.costingSvc.RecipeCost(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"recipe_id":    c.Param("id"),
		"cost":         cost,
		"cost_display": cost.Round(2).StringFixed(2),
	})
}
