// Package service holds the authentication/role workflow: registration,
// login, token issuance and atomic role assignment.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-user-admin/internal/core/apperr"
	"go-user-admin/internal/core/auth"
	"go-user-admin/internal/core/cache"
	"go-user-admin/internal/model"
	"go-user-admin/internal/repo"
	"go-user-admin/pkg/utils"
)

type UserRepository = repo.Repository[model.User, *model.User]
type RoleRepository = repo.Repository[model.Role, *model.Role]

type RegisterInput struct {
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required,min=6"`
	FirstName  string  `json:"firstName" binding:"required,max=64"`
	LastName   string  `json:"lastName" binding:"required,max=64"`
	MiddleName *string `json:"middleName" binding:"omitempty,max=64"`
}

type RoleResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AuthResponse struct {
	Email       string         `json:"email"`
	AccessToken string         `json:"accessToken"`
	Roles       []RoleResponse `json:"roles"`
}

// AuthService is constructed once; every operation builds its own
// repositories so staged mutations stay request-scoped.
type AuthService struct {
	db      *gorm.DB
	jwt     *auth.JWTer
	cache   *cache.Service // optional; nil disables memoized reads
	userTTL time.Duration
	log     *zap.Logger
}

func NewAuthService(db *gorm.DB, jwt *auth.JWTer, c *cache.Service, userTTL time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, cache: c, userTTL: userTTL, log: log}
}

func (s *AuthService) userRepo() *UserRepository {
	return repo.New[model.User, *model.User](s.db, s.log)
}

func (s *AuthService) roleRepo() *RoleRepository {
	return repo.New[model.Role, *model.Role](s.db, s.log)
}

// Register creates a user with the default role attached and issues a
// token through the same path as Login. A token-issuance failure after the
// commit leaves the user durably created and returns a generic error.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	users := s.userRepo()

	exists, err := users.Any(ctx, "email = ?", in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Newf(apperr.KindExists, "user with email %q already exists", in.Email)
	}

	defaultRole, err := s.ensureDefaultRole(ctx)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Base:         model.NewBase(),
		Email:        in.Email,
		PasswordHash: utils.HashPassword(in.Password),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		MiddleName:   in.MiddleName,
		Roles:        []*model.Role{defaultRole},
	}
	users.Add(user)
	if _, err := users.SaveChanges(ctx); err != nil {
		return nil, err
	}

	token, err := s.issueToken(ctx, in.Email, in.Password)
	if err != nil || token == "" {
		// The user row is committed at this point; the caller sees an
		// error but a retry of Login will succeed.
		s.log.Error("token issuance failed after registration",
			zap.String("email", in.Email), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindInternal, "error while creating a user", err)
	}

	return &AuthResponse{
		Email:       user.Email,
		AccessToken: token,
		Roles:       toRoleResponses([]*model.Role{defaultRole}),
	}, nil
}

// Login verifies credentials and issues a token embedding the user's
// email, id and role names.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	users := s.userRepo()

	var u model.User
	err := users.GetListQuery(ctx).Preload("Roles").Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Newf(apperr.KindNotFound, "user with email %q does not exist", email)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "load user", err)
	}

	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, apperr.New(apperr.KindAuthentication, "wrong password")
	}

	token, err := s.issueToken(ctx, email, password)
	if err != nil || token == "" {
		return nil, apperr.Wrap(apperr.KindInternal, "token issuance failed", err)
	}

	return &AuthResponse{
		Email:       u.Email,
		AccessToken: token,
		Roles:       toRoleResponses(u.Roles),
	}, nil
}

// AddRoles attaches the resolved roles to the user through the inverse
// collection and commits once. All-or-nothing: every id must resolve
// before any mutation happens.
func (s *AuthService) AddRoles(ctx context.Context, userID int, roleIDs []int) error {
	if len(roleIDs) == 0 {
		return apperr.New(apperr.KindInvalidArgument, "you have to provide role ids")
	}

	users, rolesRepo := s.userRepo(), s.roleRepo()

	var roles []model.Role
	if err := rolesRepo.GetListQuery(ctx).Where("id IN ?", roleIDs).Find(&roles).Error; err != nil {
		return apperr.Wrap(apperr.KindStore, "load roles", err)
	}
	if len(roles) != len(roleIDs) {
		return apperr.Newf(apperr.KindNotFound, "one or more of roles %v do not exist", roleIDs)
	}

	user, err := users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.Newf(apperr.KindNotFound, "user %d does not exist", userID)
	}

	err = users.Tx(ctx, func(tx *gorm.DB) error {
		for i := range roles {
			if err := tx.Model(&roles[i]).Association("Users").Append(user); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateUser(ctx, userID)
	return nil
}

// UserByID loads a user with roles, memoized through the cache service
// when one is wired in.
func (s *AuthService) UserByID(ctx context.Context, id int) (*model.User, error) {
	if s.cache == nil {
		return s.loadUser(ctx, id)
	}
	return cache.GetWithCache(ctx, s.cache, userCacheKey(id), s.userTTL, func(ctx context.Context) (*model.User, error) {
		return s.loadUser(ctx, id)
	})
}

func (s *AuthService) loadUser(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	err := s.userRepo().GetListQuery(ctx).Preload("Roles").Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Newf(apperr.KindNotFound, "user %d does not exist", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "load user", err)
	}
	return &u, nil
}

func (s *AuthService) invalidateUser(ctx context.Context, id int) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userCacheKey(id))
	}
}

// ensureDefaultRole resolves the default role, creating it lazily on first
// registration. The unique index on the role name turns the concurrent
// first-registration race into a duplicate-key failure, after which the
// winner's row is re-read.
func (s *AuthService) ensureDefaultRole(ctx context.Context) (*model.Role, error) {
	roles := s.roleRepo()

	role, err := roles.FirstOrDefault(ctx, "name = ?", model.DefaultRoleName)
	if err != nil {
		return nil, err
	}
	if role != nil {
		return role, nil
	}

	created := &model.Role{
		Base:        model.NewBase(),
		Name:        model.DefaultRoleName,
		Description: "Regular user account",
	}
	roles.Add(created)
	if _, err := roles.SaveChanges(ctx); err != nil {
		role, readErr := roles.FirstOrDefault(ctx, "name = ?", model.DefaultRoleName)
		if readErr == nil && role != nil {
			return role, nil
		}
		return nil, err
	}
	return created, nil
}

// issueToken is the single token-issuance path: it re-reads the user by
// email and password digest and signs the identity claims.
func (s *AuthService) issueToken(ctx context.Context, email, password string) (string, error) {
	hash := utils.HashPassword(password)
	var u model.User
	err := s.userRepo().GetListQuery(ctx).Preload("Roles").
		Where("email = ? AND password_hash = ?", email, hash).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.jwt.Issue(strconv.Itoa(u.ID), u.Email, u.RoleNames())
}

func toRoleResponses(roles []*model.Role) []RoleResponse {
	out := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleResponse{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	return out
}

func userCacheKey(id int) string { return fmt.Sprintf("user:%d", id) }
