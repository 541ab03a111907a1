package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/service"
)

type PlanHandler struct {
	svc *service.PlanService
}

func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

// CreatePlan POST /plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var input service.CreatePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	plan, err := h.svc.CreatePlan(c.Request.Context(), &input, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, plan)
}

// GetPlan GET /plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.svc.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plan)
}

// ListPlans GET /plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.svc.ListPlans(c.Request.Context(), c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plans)
}

// DeletePlan DELETE /plans/:id
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	if err := h.svc.DeletePlan(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// AddTarget POST /plans/:id/targets
func (h *PlanHandler) AddTarget(c *gin.Context) {
	var input service.AddTargetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	target, err := h.svc.AddTarget(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, target)
}

// UpdateTargetQuantity PUT /plans/:id/targets/:targetId
func (h *PlanHandler) UpdateTargetQuantity(c *gin.Context) {
	var input struct {
		RequestedQuantity float64 `json:"requested_quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	target, err := h.svc.UpdateTargetQuantity(c.Request.Context(), c.Param("id"), c.Param("targetId"), input.RequestedQuantity)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, target)
}

// RemoveTarget DELETE /plans/:id/targets/:targetId
func (h *PlanHandler) RemoveTarget(c *gin.Context) {
	if err := h.svc.RemoveTarget(c.Request.Context(), c.Param("id"), c.Param("targetId")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// LockPlan POST /plans/:id/lock
func (h *PlanHandler) LockPlan(c *gin.Context) {
	plan, err := h.svc.Lock(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plan)
}

// StartProduction POST /plans/:id/start-production
func (h *PlanHandler) StartProduction(c *gin.Context) {
	plan, err := h.svc.StartProduction(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plan)
}

// CompletePlan POST /plans/:id/complete
func (h *PlanHandler) CompletePlan(c *gin.Context) {
	plan, err := h.svc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plan)
}
