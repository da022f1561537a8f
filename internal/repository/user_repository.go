package repository

import (
	"context"

	"github.com/exclusiveng/server/internal/domain/model"
)

// 保存・取得を約束。見つからない場合は ErrNotFound。
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// ユーザー情報の更新=>アクティブかどうか・ロールの変更・最後のログイン更新など
	// token_versionは書き換えない
	Update(ctx context.Context, user *model.User) error
	// token_versionをDB側で+1する。対象が無ければErrNotFound
	IncrementTokenVersion(ctx context.Context, userID string) error
}
