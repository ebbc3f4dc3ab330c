package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"blogosphere/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, models.CodeConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.email"), models.CodeConflict},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), models.CodeServiceUnavailable},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, models.CodeInternal},
		{"plain", errors.New("boom"), models.CodeInternal},
		{"app error passthrough", models.NewNotFoundError("Post", 1), models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, models.HasCode(translate(tt.err, "exists"), tt.code))
		})
	}

	assert.NoError(t, translate(nil, "exists"))
}
