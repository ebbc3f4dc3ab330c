package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"blogosphere/internal/models"
	"blogosphere/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint) (*models.Post, error)
	updateFn         func(context.Context, *models.Post, ...string) error
	deleteFn         func(context.Context, uint) error
	listCandidatesFn func(context.Context, repository.PostFilter, int) ([]*models.Post, error)
	listByAuthorFn   func(context.Context, uint, string) ([]*models.Post, error)
	recordViewFn     func(context.Context, repository.ViewRequest) (bool, error)
	toggleLikeFn     func(context.Context, uint, uint) (repository.LikeResult, error)
	isLikedFn        func(context.Context, uint, uint) (bool, error)
	likedPostIDsFn   func(context.Context, uint, []uint) ([]uint, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post, columns ...string) error {
	return s.updateFn(ctx, post, columns...)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) ListCandidates(ctx context.Context, f repository.PostFilter, limit int) ([]*models.Post, error) {
	return s.listCandidatesFn(ctx, f, limit)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint, status string) ([]*models.Post, error) {
	return s.listByAuthorFn(ctx, authorID, status)
}
func (s *postRepoStub) RecordView(ctx context.Context, req repository.ViewRequest) (bool, error) {
	return s.recordViewFn(ctx, req)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, postID, userID uint) (repository.LikeResult, error) {
	return s.toggleLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	return s.isLikedFn(ctx, postID, userID)
}
func (s *postRepoStub) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	return s.likedPostIDsFn(ctx, userID, postIDs)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, _ uint) (*models.Post, error) { return &models.Post{}, nil },
		updateFn:  func(_ context.Context, _ *models.Post, _ ...string) error { return nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
		listCandidatesFn: func(_ context.Context, _ repository.PostFilter, _ int) ([]*models.Post, error) {
			return nil, nil
		},
		listByAuthorFn: func(_ context.Context, _ uint, _ string) ([]*models.Post, error) { return nil, nil },
		recordViewFn:   func(_ context.Context, _ repository.ViewRequest) (bool, error) { return true, nil },
		toggleLikeFn: func(_ context.Context, _, _ uint) (repository.LikeResult, error) {
			return repository.LikeResult{}, nil
		},
		isLikedFn:      func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		likedPostIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	touchLastLoginFn func(context.Context, uint, time.Time) error
	listFn           func(context.Context, repository.UserFilter, int, int) ([]models.User, int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.touchLastLoginFn(ctx, id, at)
}
func (s *userRepoStub) List(ctx context.Context, f repository.UserFilter, limit, offset int) ([]models.User, int64, error) {
	return s.listFn(ctx, f, limit, offset)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "author", Email: "author@example.com"}, nil
		},
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn:  func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		updatePasswordFn: func(_ context.Context, _ uint, _ string) error { return nil },
		touchLastLoginFn: func(_ context.Context, _ uint, _ time.Time) error { return nil },
		listFn: func(_ context.Context, _ repository.UserFilter, _, _ int) ([]models.User, int64, error) {
			return nil, 0, nil
		},
	}
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeForbidden)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}
