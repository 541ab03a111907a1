package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/service"
)

type SummaryHandler struct {
	summarySvc    *service.SummaryService
	comparisonSvc *service.ComparisonService
}

func NewSummaryHandler(summarySvc *service.SummaryService, comparisonSvc *service.ComparisonService) *SummaryHandler {
	return &SummaryHandler{
		summarySvc:    summarySvc,
		comparisonSvc: comparisonSvc,
	}
}

// GetPlanSummary GET /plans/:id/summary
func (h *SummaryHandler) GetPlanSummary(c *gin.Context) {
	summary, err := h.summarySvc.PlanSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, summary)
}

// ComparePlan GET /plans/:id/comparison
func (h *SummaryHandler) ComparePlan(c *gin.Context) {
	comparison, err := h.comparisonSvc.ComparePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, comparison)
}

// ExportShoppingList GET /plans/:id/shopping-list/export
func (h *SummaryHandler) ExportShoppingList(c *gin.Context) {
	f, filename, err := h.summarySvc.ExportShoppingList(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
