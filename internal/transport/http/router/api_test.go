package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-user-admin/internal/core/apperr"
	"go-user-admin/internal/core/auth"
	"go-user-admin/internal/model"
	"go-user-admin/internal/service"
	resp "go-user-admin/internal/transport/http/response"
)

type apiFixture struct {
	engine *gin.Engine
	db     *gorm.DB
	svc    *service.AuthService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Role{}))

	jwter := &auth.JWTer{
		Secret:   []byte("test-secret"),
		Issuer:   "go-user-admin",
		Audience: "go-user-admin-clients",
		TTL:      time.Hour,
	}
	svc := service.NewAuthService(db, jwter, nil, 0, zap.NewNop())
	return &apiFixture{
		engine: NewAPIEngine(zap.NewNop(), db, jwter, svc),
		db:     db,
		svc:    svc,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) resp.Resp {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (f *apiFixture) register(t *testing.T, email, password string) string {
	t.Helper()
	out := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": email, "password": password,
		"firstName": "Ada", "lastName": "Lovelace",
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)

	b, err := json.Marshal(out.Data)
	require.NoError(t, err)
	var ar service.AuthResponse
	require.NoError(t, json.Unmarshal(b, &ar))
	require.NotEmpty(t, ar.AccessToken)
	return ar.AccessToken
}

func (f *apiFixture) userByEmail(t *testing.T, email string) model.User {
	t.Helper()
	var u model.User
	require.NoError(t, f.db.Where("email = ?", email).First(&u).Error)
	return u
}

func TestUserUpdateKeepsStoredPasswordDigest(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	token := f.register(t, "a@b.c", "s3cret!")
	u := f.userByEmail(t, "a@b.c")

	// rename without sending a password
	out := f.do(t, http.MethodPut, "/api/v1/users", token, gin.H{
		"id": u.ID, "email": "a@b.c", "firstName": "Renamed", "lastName": "Lovelace",
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)

	got := f.userByEmail(t, "a@b.c")
	assert.Equal(t, "Renamed", got.FirstName)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)

	_, err := f.svc.Login(ctx, "a@b.c", "s3cret!")
	assert.NoError(t, err)
}

func TestUserUpdateCanRotatePassword(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	token := f.register(t, "a@b.c", "s3cret!")
	u := f.userByEmail(t, "a@b.c")

	out := f.do(t, http.MethodPut, "/api/v1/users", token, gin.H{
		"id": u.ID, "email": "a@b.c", "firstName": "Ada", "lastName": "Lovelace",
		"password": "n3wpass!",
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)

	_, err := f.svc.Login(ctx, "a@b.c", "s3cret!")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
	_, err = f.svc.Login(ctx, "a@b.c", "n3wpass!")
	assert.NoError(t, err)

	// the digest never leaks into the response envelope
	b, err := json.Marshal(out.Data)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
}

func TestUserCreateRequiresAndDigestsPassword(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	token := f.register(t, "admin@b.c", "s3cret!")

	out := f.do(t, http.MethodPost, "/api/v1/users", token, gin.H{
		"email": "new@b.c", "firstName": "No", "lastName": "Password",
	})
	assert.Equal(t, resp.CodeBadRequest, out.Code)

	out = f.do(t, http.MethodPost, "/api/v1/users", token, gin.H{
		"email": "new@b.c", "firstName": "With", "lastName": "Password",
		"password": "pw12345",
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)

	got := f.userByEmail(t, "new@b.c")
	assert.NotEmpty(t, got.PasswordHash)
	_, err := f.svc.Login(ctx, "new@b.c", "pw12345")
	assert.NoError(t, err)
}

func TestUserBatchUpdateKeepsStoredPasswordDigest(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	token := f.register(t, "a@b.c", "s3cret!")
	u := f.userByEmail(t, "a@b.c")

	out := f.do(t, http.MethodPut, "/api/v1/users/range", token, []gin.H{
		{"id": u.ID, "email": "a@b.c", "firstName": "Batch", "lastName": "Renamed"},
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)

	_, err := f.svc.Login(ctx, "a@b.c", "s3cret!")
	assert.NoError(t, err)
}
