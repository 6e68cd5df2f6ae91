package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-user-admin/internal/core/apperr"
	"go-user-admin/internal/service"
	"go-user-admin/internal/transport/http/middleware"
	resp "go-user-admin/internal/transport/http/response"
)

type AuthHandler struct {
	svc *service.AuthService
	log *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	out, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(out))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	out, err := h.svc.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(out))
}

// Me handles GET /auth/me for the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unauthorized"))
		return
	}
	id, err := strconv.Atoi(claims.UID)
	if err != nil {
		c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token subject"))
		return
	}
	u, err := h.svc.UserByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(u))
}

// AddRoles handles POST /users/:id/roles with either a single role id or
// a list.
func (h *AuthHandler) AddRoles(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "invalid user id"))
		return
	}
	var in struct {
		RoleID  *int  `json:"roleId"`
		RoleIDs []int `json:"roleIds"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	ids := in.RoleIDs
	if in.RoleID != nil {
		ids = append(ids, *in.RoleID)
	}
	if err := h.svc.AddRoles(c.Request.Context(), userID, ids); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"userId": userID, "roleIds": ids}))
}

// fail maps domain failures to response codes; unanticipated failures are
// logged with context and surfaced opaquely.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindStore:
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("rid", c.GetString(middleware.KeyRequestID)),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusOK, resp.ErrorFrom(err))
}
