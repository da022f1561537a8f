package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, Translate(nil))
	})

	t.Run("record not found", func(t *testing.T) {
		assert.ErrorIs(t, Translate(gorm.ErrRecordNotFound), repo.ErrNotFound)
	})

	t.Run("deadlock is transient", func(t *testing.T) {
		err := Translate(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}))
		assert.ErrorIs(t, err, repo.ErrTransient)

		var pgErr *pgconn.PgError
		assert.True(t, errors.As(err, &pgErr))
	})

	t.Run("serialization failure is transient", func(t *testing.T) {
		assert.ErrorIs(t, Translate(&pgconn.PgError{Code: "40001"}), repo.ErrTransient)
	})

	t.Run("unique violation is duplicate not transient", func(t *testing.T) {
		err := &pgconn.PgError{Code: "23505"}
		assert.False(t, IsTransient(err))
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("check violation passes through", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23514"}
		err := Translate(pgErr)
		assert.NotErrorIs(t, err, repo.ErrTransient)
		assert.Same(t, pgErr, err)
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		assert.ErrorIs(t, Translate(context.DeadlineExceeded), repo.ErrTransient)
	})

	t.Run("already translated is kept", func(t *testing.T) {
		in := fmt.Errorf("%w: boom", repo.ErrTransient)
		assert.Same(t, in, Translate(in))
	})
}
