package db

import (
	"context"
	"errors"
	"fmt"

	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 再試行で成功しうるSQLSTATE
var transientCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57P01": {}, // admin_shutdown
	"53300": {}, // too_many_connections
}

const uniqueViolation = "23505"

// Translate はDBエラーをrepositoryのエラーに寄せる。
// 既に翻訳済み・ドメインエラーはそのまま返す。
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrTransient) || errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrDuplicate) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", repo.ErrDuplicate, err)
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", repo.ErrTransient, err)
	}
	return err
}

// IsTransient はロック競合・接続断など一時的な失敗か判定する
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return false
		}
		_, ok := transientCodes[pgErr.Code]
		return ok
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// IsUniqueViolation は一意制約違反か
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, repo.ErrDuplicate)
}
