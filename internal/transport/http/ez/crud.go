// Package ez registers the generic CRUD workflow (list/get/add/update/
// remove, single and batch) for one entity type on top of the repository.
// Every entity-specific endpoint group reuses it.
package ez

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-user-admin/internal/model"
	"go-user-admin/internal/repo"
	resp "go-user-admin/internal/transport/http/response"
)

type Config[T any, PT interface {
	*T
	model.Entity
}] struct {
	DB  *gorm.DB
	Log *zap.Logger

	// BeforeAdd rejects an entity before it is staged, e.g. a uniqueness
	// check on a business key. Return a typed apperr for a mapped code.
	BeforeAdd func(c *gin.Context, r *repo.Repository[T, PT], m PT) error
	// BeforeAddRange is the batch counterpart of BeforeAdd.
	BeforeAddRange func(c *gin.Context, r *repo.Repository[T, PT], ms []PT) error
	// BeforeUpdate runs after the stored row is loaded and before audit
	// fields are synced onto the inbound entity, e.g. to derive fields the
	// wire format does not carry.
	BeforeUpdate func(c *gin.Context, r *repo.Repository[T, PT], m, fromDB PT) error
	// BeforeUpdateRange is the batch counterpart of BeforeUpdate.
	BeforeUpdateRange func(c *gin.Context, r *repo.Repository[T, PT], ms, fromDB []PT) error
	// Scope composes onto every list/get query (e.g. Preload of relations).
	Scope func(c *gin.Context, q *gorm.DB) *gorm.DB
}

// Crud mounts the workflow under path. Each request builds its own
// repository so staged mutations never cross request boundaries.
func Crud[T any, PT interface {
	*T
	model.Entity
}](g *gin.RouterGroup, path string, cfg Config[T, PT]) {
	newRepo := func() *repo.Repository[T, PT] {
		return repo.New[T, PT](cfg.DB, cfg.Log)
	}
	scope := func(c *gin.Context, q *gorm.DB) *gorm.DB {
		if cfg.Scope != nil {
			return cfg.Scope(c, q)
		}
		return q
	}

	// List, ordered by creation instant. ?with_deleted=true widens the
	// visibility to soft-deleted rows.
	g.GET(path, func(c *gin.Context) {
		r := newRepo()
		q := r.GetListQuery(c.Request.Context())
		if c.Query("with_deleted") == "true" {
			q = r.GetListQueryWithDeleted(c.Request.Context())
		}
		var items []T
		if err := scope(c, q).Order("date_create").Find(&items).Error; err != nil {
			cfg.Log.Error("list entities failed", zap.Error(err))
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, ""))
			return
		}
		c.JSON(http.StatusOK, resp.OK(items))
	})

	// Paged list slice.
	g.GET(path+"/piece", func(c *gin.Context) {
		limit := atoiDefault(c.Query("limit"), 1000)
		skip := atoiDefault(c.Query("skip"), 0)
		if limit < 0 || limit > 1000 {
			limit = 1000
		}
		if skip < 0 {
			skip = 0
		}
		r := newRepo()
		var items []T
		q := scope(c, r.GetListQuery(c.Request.Context()))
		if err := q.Order("date_create").Offset(skip).Limit(limit).Find(&items).Error; err != nil {
			cfg.Log.Error("list entities piece failed", zap.Error(err))
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, ""))
			return
		}
		c.JSON(http.StatusOK, resp.OK(items))
	})

	g.GET(path+"/:id", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		r := newRepo()
		var m T
		err := scope(c, r.GetListQuery(c.Request.Context())).Where("id = ?", id).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "id not found"))
			return
		}
		if err != nil {
			cfg.Log.Error("get entity failed", zap.Error(err))
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, ""))
			return
		}
		c.JSON(http.StatusOK, resp.OK(&m))
	})

	g.POST(path, func(c *gin.Context) {
		m := PT(new(T))
		if err := c.ShouldBindJSON(m); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		r := newRepo()
		if cfg.BeforeAdd != nil {
			if err := cfg.BeforeAdd(c, r, m); err != nil {
				c.JSON(http.StatusOK, resp.ErrorFrom(err))
				return
			}
		}
		r.Add(m)
		if _, err := r.SaveChanges(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(m))
	})

	g.POST(path+"/range", func(c *gin.Context) {
		var list []T
		if err := c.ShouldBindJSON(&list); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		if len(list) == 0 {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "no entities provided"))
			return
		}
		ms := make([]PT, 0, len(list))
		for i := range list {
			ms = append(ms, PT(&list[i]))
		}
		r := newRepo()
		if cfg.BeforeAddRange != nil {
			if err := cfg.BeforeAddRange(c, r, ms); err != nil {
				c.JSON(http.StatusOK, resp.ErrorFrom(err))
				return
			}
		}
		r.AddRange(ms)
		if _, err := r.SaveChanges(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(ms))
	})

	g.PUT(path, func(c *gin.Context) {
		m := PT(new(T))
		if err := c.ShouldBindJSON(m); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		r := newRepo()
		fromDB, err := r.Get(c.Request.Context(), m.PrimaryKey())
		if err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		if fromDB == nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "id not found"))
			return
		}
		if cfg.BeforeUpdate != nil {
			if err := cfg.BeforeUpdate(c, r, m, fromDB); err != nil {
				c.JSON(http.StatusOK, resp.ErrorFrom(err))
				return
			}
		}
		m.SyncAudit(fromDB)
		r.Update(m)
		if _, err := r.SaveChanges(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(m))
	})

	g.PUT(path+"/range", func(c *gin.Context) {
		var list []T
		if err := c.ShouldBindJSON(&list); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		if len(list) == 0 {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "no entities provided"))
			return
		}
		ms := make([]PT, 0, len(list))
		ids := make([]int, 0, len(list))
		for i := range list {
			ms = append(ms, PT(&list[i]))
			ids = append(ids, PT(&list[i]).PrimaryKey())
		}

		r := newRepo()
		var existing []T
		if err := r.GetListQuery(c.Request.Context()).Where("id IN ?", ids).Find(&existing).Error; err != nil {
			cfg.Log.Error("load entities for update failed", zap.Error(err))
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, ""))
			return
		}
		byID := make(map[int]PT, len(existing))
		for i := range existing {
			p := PT(&existing[i])
			byID[p.PrimaryKey()] = p
		}
		var missing []int
		for _, m := range ms {
			if _, ok := byID[m.PrimaryKey()]; !ok {
				missing = append(missing, m.PrimaryKey())
			}
		}
		if len(missing) != 0 {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "ids not found"))
			return
		}
		if cfg.BeforeUpdateRange != nil {
			fromDB := make([]PT, 0, len(ms))
			for _, m := range ms {
				fromDB = append(fromDB, byID[m.PrimaryKey()])
			}
			if err := cfg.BeforeUpdateRange(c, r, ms, fromDB); err != nil {
				c.JSON(http.StatusOK, resp.ErrorFrom(err))
				return
			}
		}
		for _, m := range ms {
			m.SyncAudit(byID[m.PrimaryKey()])
		}
		r.UpdateRange(ms)
		if _, err := r.SaveChanges(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(ms))
	})

	// Soft delete. Existence is checked first so unknown ids surface as
	// not-found instead of the repository's silent no-op.
	g.DELETE(path+"/range", func(c *gin.Context) {
		var ids []int
		if err := c.ShouldBindJSON(&ids); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		if len(ids) == 0 {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "no ids provided"))
			return
		}
		r := newRepo()
		if err := r.RemoveRangeByID(c.Request.Context(), ids); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		if _, err := r.SaveChanges(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(nil))
	})

	g.DELETE(path+"/:id", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		r := newRepo()
		m, err := r.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		if m == nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "id not found"))
			return
		}
		r.Remove(m)
		if _, err := r.SaveChanges(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, resp.ErrorFrom(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(gin.H{"id": id}))
	})
}

func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "invalid id"))
		return 0, false
	}
	return id, true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
