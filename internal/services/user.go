package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type UserInput struct {
	Email     string
	FirstName string
	LastName  string
}

// UserService maintains the user records that back creator attribution.
// Authentication is out of scope; callers arrive with a resolved identity.
type UserService interface {
	Create(dbc dbctx.Context, in UserInput) (*types.User, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	List(dbc dbctx.Context, skip, limit int) ([]*types.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
	serviceLog := baseLog.With("service", "UserService")
	return &userService{db: db, log: serviceLog, userRepo: userRepo}
}

func (us *userService) Create(dbc dbctx.Context, in UserInput) (*types.User, error) {
	const op = "UserService.Create"

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Newf(apperr.CodeValidation, op, "invalid email %q", in.Email)
	}

	now := time.Now()
	user := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := us.userRepo.Create(dbc, []*types.User{user}); err != nil {
		us.log.Error("Create failed", "email", email, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}
	return user, nil
}

func (us *userService) Get(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	const op = "UserService.Get"

	user, err := us.userRepo.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "user %s not found", id)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return user, nil
}

func (us *userService) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	const op = "UserService.GetByEmail"

	user, err := us.userRepo.GetByEmail(dbc, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "user %q not found", email)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return user, nil
}

func (us *userService) List(dbc dbctx.Context, skip, limit int) ([]*types.User, error) {
	const op = "UserService.List"

	users, err := us.userRepo.List(dbc, skip, limit)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return users, nil
}
