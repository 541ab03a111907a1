package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/service"
)

type AmendmentHandler struct {
	svc *service.AmendmentService
}

func NewAmendmentHandler(svc *service.AmendmentService) *AmendmentHandler {
	return &AmendmentHandler{svc: svc}
}

// RecordAmendment POST /plans/:id/amendments
func (h *AmendmentHandler) RecordAmendment(c *gin.Context) {
	var input service.RecordAmendmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	record, err := h.svc.Record(c.Request.Context(), c.Param("id"), &input, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, record)
}

// ListAmendments GET /plans/:id/amendments
func (h *AmendmentHandler) ListAmendments(c *gin.Context) {
	records, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, records)
}
