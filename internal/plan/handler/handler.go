package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ovenbird/bakeplan/internal/plan/repository"
	"github.com/ovenbird/bakeplan/internal/plan/service"
)

// Handlers 处理器集合
type Handlers struct {
	Catalog   *CatalogHandler
	Plan      *PlanHandler
	Amendment *AmendmentHandler
	Summary   *SummaryHandler
	Snapshot  *SnapshotHandler
	User      *UserHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, repos *repository.Repositories) *Handlers {
	return &Handlers{
		Catalog:   NewCatalogHandler(svc.Catalog, svc.Costing),
		Plan:      NewPlanHandler(svc.Plan),
		Amendment: NewAmendmentHandler(svc.Amendment),
		Summary:   NewSummaryHandler(svc.Summary, svc.Comparison),
		Snapshot:  NewSnapshotHandler(svc.Snapshot),
		User:      NewUserHandler(repos.User),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError 把服务层的类型化错误翻译成对应的HTTP响应。
// 未识别的错误一律按服务器内部错误处理，不向外透出原始细节。
func RespondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var stateErr *service.StateConflictError
	var conflictErr *service.ConflictError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.As(err, &validationErr):
		BadRequest(c, validationErr.Msg)
	case errors.As(err, &stateErr):
		Conflict(c, stateErr.Msg)
	case errors.As(err, &conflictErr):
		Conflict(c, conflictErr.Msg)
	default:
		InternalError(c, "something went wrong")
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
