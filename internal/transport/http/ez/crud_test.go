package ez

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-user-admin/internal/model"
	resp "go-user-admin/internal/transport/http/response"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Role{}))

	r := gin.New()
	Crud(r.Group("/api"), "/roles", Config[model.Role, *model.Role]{
		DB:  db,
		Log: zap.NewNop(),
	})
	return r
}

func do(t *testing.T, e *gin.Engine, method, path string, body any) resp.Resp {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func dataRoles(t *testing.T, r resp.Resp) []model.Role {
	t.Helper()
	b, err := json.Marshal(r.Data)
	require.NoError(t, err)
	var roles []model.Role
	require.NoError(t, json.Unmarshal(b, &roles))
	return roles
}

func dataRole(t *testing.T, r resp.Resp) model.Role {
	t.Helper()
	b, err := json.Marshal(r.Data)
	require.NoError(t, err)
	var role model.Role
	require.NoError(t, json.Unmarshal(b, &role))
	return role
}

func TestCrudLifecycle(t *testing.T) {
	e := newTestEngine(t)

	// create
	created := dataRole(t, do(t, e, http.MethodPost, "/api/roles",
		model.Role{Name: "Admin", Description: "Full access"}))
	require.NotZero(t, created.ID)
	assert.False(t, created.DateCreate.IsZero())

	// read back
	got := dataRole(t, do(t, e, http.MethodGet, fmt.Sprintf("/api/roles/%d", created.ID), nil))
	assert.Equal(t, "Admin", got.Name)

	// update keeps identity and creation instant
	got.Description = "Changed"
	updated := dataRole(t, do(t, e, http.MethodPut, "/api/roles", got))
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.DateCreate.Equal(created.DateCreate))
	assert.Equal(t, "Changed", updated.Description)

	// soft delete hides the row from the default list
	out := do(t, e, http.MethodDelete, fmt.Sprintf("/api/roles/%d", created.ID), nil)
	assert.Equal(t, resp.CodeOK, out.Code)

	assert.Empty(t, dataRoles(t, do(t, e, http.MethodGet, "/api/roles", nil)))
	assert.Len(t, dataRoles(t, do(t, e, http.MethodGet, "/api/roles?with_deleted=true", nil)), 1)
}

func TestCrudBatchAndPiece(t *testing.T) {
	e := newTestEngine(t)

	roles := dataRoles(t, do(t, e, http.MethodPost, "/api/roles/range", []model.Role{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	}))
	require.Len(t, roles, 3)

	page := dataRoles(t, do(t, e, http.MethodGet, "/api/roles/piece?limit=2&skip=1", nil))
	assert.Len(t, page, 2)

	// batch update rejects the whole request when one id is unknown
	roles[0].Description = "changed"
	bad := []model.Role{roles[0], {Base: model.Base{ID: 9999}, Name: "ghost"}}
	out := do(t, e, http.MethodPut, "/api/roles/range", bad)
	assert.Equal(t, resp.CodeBadRequest, out.Code)

	// untouched
	got := dataRole(t, do(t, e, http.MethodGet, fmt.Sprintf("/api/roles/%d", roles[0].ID), nil))
	assert.Empty(t, got.Description)

	// valid batch update goes through
	roles[1].Description = "second"
	updated := dataRoles(t, do(t, e, http.MethodPut, "/api/roles/range", []model.Role{roles[0], roles[1]}))
	require.Len(t, updated, 2)
	assert.True(t, updated[0].DateUpdate.Equal(updated[1].DateUpdate))

	// batch soft delete
	out = do(t, e, http.MethodDelete, "/api/roles/range", []int{roles[0].ID, roles[1].ID})
	assert.Equal(t, resp.CodeOK, out.Code)
	assert.Len(t, dataRoles(t, do(t, e, http.MethodGet, "/api/roles", nil)), 1)
}

func TestCrudNotFoundAndBadInput(t *testing.T) {
	e := newTestEngine(t)

	out := do(t, e, http.MethodGet, "/api/roles/9999", nil)
	assert.Equal(t, resp.CodeNotFound, out.Code)

	out = do(t, e, http.MethodDelete, "/api/roles/9999", nil)
	assert.Equal(t, resp.CodeNotFound, out.Code)

	out = do(t, e, http.MethodPut, "/api/roles", model.Role{Base: model.Base{ID: 9999}, Name: "ghost"})
	assert.Equal(t, resp.CodeNotFound, out.Code)

	out = do(t, e, http.MethodPost, "/api/roles/range", []model.Role{})
	assert.Equal(t, resp.CodeBadRequest, out.Code)
}
