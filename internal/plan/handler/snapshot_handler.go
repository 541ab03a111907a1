package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/service"
)

type SnapshotHandler struct {
	svc *service.SnapshotService
}

func NewSnapshotHandler(svc *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{svc: svc}
}

// CaptureRecipeSnapshot POST /recipes/:id/snapshots
// 不带 run_id 创建规划快照（进入生产时可被复用），scale_factor 缺省为1。
func (h *SnapshotHandler) CaptureRecipeSnapshot(c *gin.Context) {
	var input struct {
		ScaleFactor float64 `json:"scale_factor"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if input.ScaleFactor == 0 {
		input.ScaleFactor = 1.0
	}

	snap, err := h.svc.CaptureRecipeSnapshot(c.Request.Context(), c.Param("id"), nil, input.ScaleFactor, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, snap)
}

// ListRecipeSnapshots GET /recipes/:id/snapshots
func (h *SnapshotHandler) ListRecipeSnapshots(c *gin.Context) {
	snaps, err := h.svc.ListRecipeSnapshots(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, snaps)
}

// GetSnapshot GET /snapshots/:id
func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	snap, err := h.svc.GetSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, snap)
}
