package repository

import (
	"context"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
)

const (
	DefaultAuditLogLimit = 50
	MaxAuditLogLimit     = 200
)

// 監査ログの絞り込み条件。nil/空の項目は条件にしない。
type AuditLogFilter struct {
	ActorUserID *string
	// いずれかに一致（OR）
	Actions      []model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// Page は範囲外のlimit/offsetを既定値に寄せて返す
func (f AuditLogFilter) Page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 || limit > MaxAuditLogLimit {
		limit = DefaultAuditLogLimit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Matches はメモリ上で条件を評価する（limit/offsetは見ない）
func (f AuditLogFilter) Matches(l model.AuditLog) bool {
	if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
		return false
	}
	if len(f.Actions) > 0 && !containsAction(f.Actions, l.Action) {
		return false
	}
	if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
		return false
	}
	if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
		return false
	}
	if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func containsAction(actions []model.AuditAction, a model.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

// 監査ログの保存・一覧取得の約束。一覧は新しい順。
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
