package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
)

// UserHandler 当前用户信息
type UserHandler struct {
	userRepo *repository.UserRepository
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// Me 返回令牌对应的用户档案
func (h *UserHandler) Me(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		Unauthorized(c, "未登录")
		return
	}
	user, err := h.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, user)
}
