package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-user-admin/internal/core/apperr"
	"go-user-admin/internal/core/auth"
	"go-user-admin/internal/model"
	"go-user-admin/internal/repo"
	"go-user-admin/internal/service"
	"go-user-admin/internal/transport/http/ez"
	"go-user-admin/internal/transport/http/handler"
	mdw "go-user-admin/internal/transport/http/middleware"
	"go-user-admin/pkg/utils"
)

func NewAPIEngine(l *zap.Logger, db *gorm.DB, jwter *auth.JWTer, authSvc *service.AuthService) *gin.Engine {
	r := gin.New()

	r.Use(
		ginzap.RecoveryWithZap(l, true),
		cors.Default(),
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	authH := handler.NewAuthHandler(authSvc, l)
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)

	authed := api.Group("")
	authed.Use(mdw.AuthJWT(jwter, ""))
	authed.GET("/auth/me", authH.Me)
	authed.POST("/users/:id/roles", authH.AddRoles)

	mountCrud(authed, db, l)

	return r
}

// mountCrud registers the generic CRUD workflow for each entity type.
func mountCrud(g *gin.RouterGroup, db *gorm.DB, l *zap.Logger) {
	ez.Crud(g, "/users", ez.Config[model.User, *model.User]{
		DB:  db,
		Log: l,
		BeforeAdd: func(c *gin.Context, r *repo.Repository[model.User, *model.User], m *model.User) error {
			exists, err := r.Any(c.Request.Context(), "email = ?", m.Email)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Newf(apperr.KindExists, "user with email %q already exists", m.Email)
			}
			return digestPassword(m, true)
		},
		BeforeAddRange: func(c *gin.Context, r *repo.Repository[model.User, *model.User], ms []*model.User) error {
			emails := make([]string, 0, len(ms))
			for _, m := range ms {
				emails = append(emails, m.Email)
			}
			exists, err := r.Any(c.Request.Context(), "email IN ?", emails)
			if err != nil {
				return err
			}
			if exists {
				return apperr.New(apperr.KindExists, "user with one of the emails already exists")
			}
			for _, m := range ms {
				if err := digestPassword(m, true); err != nil {
					return err
				}
			}
			return nil
		},
		BeforeUpdate: func(c *gin.Context, r *repo.Repository[model.User, *model.User], m, _ *model.User) error {
			return digestPassword(m, false)
		},
		BeforeUpdateRange: func(c *gin.Context, r *repo.Repository[model.User, *model.User], ms, _ []*model.User) error {
			for _, m := range ms {
				if err := digestPassword(m, false); err != nil {
					return err
				}
			}
			return nil
		},
		Scope: func(c *gin.Context, q *gorm.DB) *gorm.DB {
			return q.Preload("Roles")
		},
	})

	ez.Crud(g, "/roles", ez.Config[model.Role, *model.Role]{
		DB:  db,
		Log: l,
	})
}

// digestPassword turns the write-only plaintext field into the stored
// digest. A user created without a password could never log in, so the
// create path requires one; on update an absent password means "keep the
// stored digest" (carried forward by User.SyncAudit).
func digestPassword(m *model.User, required bool) error {
	if m.Password == "" {
		if required {
			return apperr.New(apperr.KindInvalidArgument, "password is required")
		}
		return nil
	}
	m.PasswordHash = utils.HashPassword(m.Password)
	m.Password = ""
	return nil
}
