package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"blogosphere/internal/auth"
	"blogosphere/internal/models"
	"blogosphere/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "service-test-secret-at-least-32-chars!"

// memoryUsers backs a userRepoStub with a map so register and login can be
// exercised end to end.
func memoryUsers() (*userRepoStub, map[uint]*models.User) {
	users := map[uint]*models.User{}
	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if u, ok := users[id]; ok {
			cp := *u
			return &cp, nil
		}
		return nil, models.NewNotFoundError("User", id)
	}
	repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		for _, u := range users {
			if u.Email == email {
				cp := *u
				return &cp, nil
			}
		}
		return nil, nil
	}
	repo.getByUsernameFn = func(_ context.Context, username string) (*models.User, error) {
		for _, u := range users {
			if u.Username == username {
				cp := *u
				return &cp, nil
			}
		}
		return nil, nil
	}
	repo.createFn = func(_ context.Context, u *models.User) error {
		u.ID = uint(len(users) + 1)
		cp := *u
		users[u.ID] = &cp
		return nil
	}
	repo.updateFn = func(_ context.Context, u *models.User) error {
		cp := *u
		users[u.ID] = &cp
		return nil
	}
	repo.updatePasswordFn = func(_ context.Context, id uint, hash string) error {
		users[id].PasswordHash = hash
		return nil
	}
	repo.touchLastLoginFn = func(_ context.Context, id uint, at time.Time) error {
		users[id].LastLoginAt = &at
		return nil
	}
	return repo, users
}

func newUserService(repo *userRepoStub) (*UserService, *auth.TokenManager) {
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	return NewUserService(repo, tokens, bcrypt.MinCost), tokens
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	t.Parallel()

	repo, users := memoryUsers()
	svc, tokens := newUserService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "  Ada@Example.com ", Password: "password1", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.Settings.PublicProfile)
	assert.NotEqual(t, "password1", users[user.ID].PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "password2"})
	assertAppError(t, err, models.CodeConflict)

	_, err = svc.Register(ctx, RegisterInput{Email: "other@example.com", Password: "password2", Username: "ada"})
	assertAppError(t, err, models.CodeConflict)

	res, err := svc.Login(ctx, "ada@example.com", "password1")
	require.NoError(t, err)
	id, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	require.NotNil(t, users[user.ID].LastLoginAt)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-password1")
	assertUnauthorizedError(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = svc.Login(ctx, "nobody@example.com", "password1")
	assertUnauthorizedError(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestUserService_Register_Validation(t *testing.T) {
	t.Parallel()

	repo, _ := memoryUsers()
	svc, _ := newUserService(repo)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"Bad Email", RegisterInput{Email: "nope", Password: "password1"}},
		{"Weak Password", RegisterInput{Email: "a@example.com", Password: "short"}},
		{"No Digit", RegisterInput{Email: "a@example.com", Password: "passwordonly"}},
		{"Bad Username", RegisterInput{Email: "a@example.com", Password: "password1", Username: "-bad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestUserService_Login_Inactive(t *testing.T) {
	t.Parallel()

	repo, users := memoryUsers()
	svc, _ := newUserService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "ina@example.com", Password: "password1"})
	require.NoError(t, err)
	users[user.ID].IsActive = false

	_, err = svc.Login(ctx, "ina@example.com", "password1")
	assertUnauthorizedError(t, err)
	assert.Equal(t, "Account is deactivated", err.Error())
}

func TestUserService_ChangePassword(t *testing.T) {
	t.Parallel()

	repo, _ := memoryUsers()
	svc, _ := newUserService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "cp@example.com", Password: "password1"})
	require.NoError(t, err)

	assertUnauthorizedError(t, svc.ChangePassword(ctx, user.ID, "wrong-pass1", "newpassword2"))
	assertValidationError(t, svc.ChangePassword(ctx, user.ID, "password1", "weak"))
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "password1", "newpassword2"))

	_, err = svc.Login(ctx, "cp@example.com", "password1")
	assertUnauthorizedError(t, err)
	_, err = svc.Login(ctx, "cp@example.com", "newpassword2")
	assert.NoError(t, err)
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()

	repo, users := memoryUsers()
	svc, _ := newUserService(repo)
	ctx := context.Background()

	a, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "password1", Username: "alpha"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "password1", Username: "bravo"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{
		FirstName:     strPtr("Alpha"),
		Bio:           strPtr("  hello  "),
		Website:       strPtr("https://alpha.dev"),
		PublicProfile: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alpha", updated.FirstName)
	assert.Equal(t, "hello", users[a.ID].Profile.Bio)
	assert.False(t, users[a.ID].Settings.PublicProfile)

	_, err = svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{Username: strPtr("bravo")})
	assertAppError(t, err, models.CodeConflict)

	_, err = svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{Username: strPtr("alpha")})
	assert.NoError(t, err, "keeping your own username is not a conflict")

	_, err = svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{Website: strPtr("ftp://x")})
	assertValidationError(t, err)

	_, err = svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{})
	assertValidationError(t, err)
}

func TestUserService_GetPublicUser(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{
			ID:       id,
			Username: "private",
			Email:    "private@example.com",
			Profile:  models.Profile{Bio: "secret", Avatar: "a.png"},
			Settings: models.Settings{PublicProfile: false},
		}, nil
	}
	svc, _ := newUserService(repo)
	ctx := context.Background()

	public, err := svc.GetPublicUser(ctx, 5, Caller{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"avatar": "a.png"}, public.Profile)

	own, err := svc.GetPublicUser(ctx, 5, Caller{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, models.Profile{Bio: "secret", Avatar: "a.png"}, own.Profile)
}

func TestUserService_ListUsers(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	var gotLimit, gotOffset int
	var gotFilter repository.UserFilter
	repo.listFn = func(_ context.Context, f repository.UserFilter, limit, offset int) ([]models.User, int64, error) {
		gotFilter, gotLimit, gotOffset = f, limit, offset
		return []models.User{{ID: 1}}, 1, nil
	}
	svc, _ := newUserService(repo)

	active := true
	users, total, err := svc.ListUsers(context.Background(), ListUsersInput{Limit: 500, Offset: -3, Role: models.RoleAdmin, IsActive: &active})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 100, gotLimit)
	assert.Equal(t, 0, gotOffset)
	assert.Equal(t, models.RoleAdmin, gotFilter.Role)
	assert.True(t, *gotFilter.IsActive)
}

func TestUserService_PropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	down := models.NewServiceUnavailableError("Database service unavailable", errors.New("dial tcp"))
	repo.getByEmailFn = func(_ context.Context, _ string) (*models.User, error) { return nil, down }
	svc, _ := newUserService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "password1"})
	assertAppError(t, err, models.CodeServiceUnavailable)
}
