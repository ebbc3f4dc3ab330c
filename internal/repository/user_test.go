package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"blogosphere/internal/models"
	"blogosphere/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedUser *models.User
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash"}).
					AddRow(1, "testuser", "test@example.com", "hash")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, Username: "testuser", Email: "test@example.com", PasswordHash: "hash"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(2, 1).
					WillReturnError(errors.New("connection timeout"))
			},
			expectedCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.Nil(t, user)
				assert.True(t, models.HasCode(err, tt.expectedCode), "got %v", err)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedUser.Username, user.Username)
				assert.Equal(t, tt.expectedUser.PasswordHash, user.PasswordHash)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 ORDER BY "users"."id" LIMIT $2`)).
			WithArgs("test@example.com", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "test@example.com"))

		user, err := repo.GetByEmail(ctx, "  Test@Example.com ")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, uint(1), user.ID)
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
			WithArgs("nobody@example.com", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1 ORDER BY "users"."id" LIMIT $2`)).
		WithArgs("testuser", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(1, "testuser"))

	user, err := repo.GetByUsername(context.Background(), "testuser")
	assert.NoError(t, err)
	assert.NotNil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		user := &models.User{Username: "newuser", Email: "new@example.com", PasswordHash: "hash"}
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := repo.Create(ctx, user)
		assert.NoError(t, err)
		assert.Equal(t, uint(1), user.ID)
	})

	t.Run("Duplicate", func(t *testing.T) {
		user := &models.User{Username: "dupe", Email: "dupe@example.com", PasswordHash: "hash"}
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
			WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`))
		mock.ExpectRollback()

		err := repo.Create(ctx, user)
		assert.True(t, models.HasCode(err, models.CodeConflict))
		assert.Contains(t, err.Error(), "email")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserConflictMessage(t *testing.T) {
	assert.Equal(t, "Username is already taken",
		userConflictMessage(errors.New(`UNIQUE constraint failed: users.username`)))
	assert.Equal(t, "User already exists with this email",
		userConflictMessage(errors.New(`UNIQUE constraint failed: users.email`)))
}

func TestUserRepository_Store(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := &models.User{Email: "alice@example.com", Username: "alice", PasswordHash: "h1", FirstName: "Alice"}
	bob := &models.User{Email: "bob@example.com", Username: "bob", PasswordHash: "h2", Role: models.RoleAdmin}
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, bob))

	t.Run("Defaults", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, got.Role)
		assert.True(t, got.IsActive)
		assert.True(t, got.Settings.PublicProfile)
		assert.True(t, got.Settings.EmailNotifications)
	})

	t.Run("Duplicate Username", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Email: "other@example.com", Username: "alice", PasswordHash: "h"})
		assert.True(t, models.HasCode(err, models.CodeConflict))
		assert.Equal(t, "Username is already taken", err.Error())
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		require.NoError(t, repo.UpdatePassword(ctx, alice.ID, "h3"))
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "h3", got.PasswordHash)

		assert.True(t, models.HasCode(repo.UpdatePassword(ctx, 999, "x"), models.CodeNotFound))
	})

	t.Run("Update keeps credentials", func(t *testing.T) {
		stale, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)

		// A password change lands between the profile read and its save.
		require.NoError(t, repo.UpdatePassword(ctx, alice.ID, "h4"))
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", alice.ID).Update("is_active", false).Error)

		stale.FirstName = "Alicia"
		stale.Settings.PublicProfile = false
		require.NoError(t, repo.Update(ctx, stale))

		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", got.FirstName)
		assert.False(t, got.Settings.PublicProfile)
		assert.Equal(t, "h4", got.PasswordHash)
		assert.False(t, got.IsActive)

		require.NoError(t, db.Model(&models.User{}).Where("id = ?", alice.ID).Update("is_active", true).Error)
		assert.True(t, models.HasCode(repo.Update(ctx, &models.User{ID: 999}), models.CodeNotFound))
	})

	t.Run("TouchLastLogin", func(t *testing.T) {
		at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
		require.NoError(t, repo.TouchLastLogin(ctx, bob.ID, at))
		got, err := repo.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		assert.True(t, at.Equal(*got.LastLoginAt))
	})

	t.Run("List", func(t *testing.T) {
		users, total, err := repo.List(ctx, UserFilter{}, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, users, 1)

		admins, total, err := repo.List(ctx, UserFilter{Role: models.RoleAdmin}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "bob", admins[0].Username)

		found, total, err := repo.List(ctx, UserFilter{Search: "ALI"}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "alice", found[0].Username)
	})
}
