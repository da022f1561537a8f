package memory

import (
	"context"
	"strings"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"
)

type UserRepository struct{ *base }

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.with(func(st *state) error {
		user.Email = strings.ToLower(user.Email)
		for _, u := range st.users {
			if u.Email == user.Email {
				return repo.ErrDuplicate
			}
		}
		user.ID = newID(user.ID)
		now := r.stamp()
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		user.UpdatedAt = now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var out *model.User
	err := r.with(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return repo.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.with(func(st *state) error {
		email = strings.ToLower(email)
		for _, u := range st.users {
			if u.Email == email {
				found := u
				out = &found
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return out, err
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.with(func(st *state) error {
		cur, ok := st.users[user.ID]
		if !ok {
			return repo.ErrNotFound
		}
		user.TokenVersion = cur.TokenVersion
		user.CreatedAt = cur.CreatedAt
		user.UpdatedAt = r.stamp()
		st.users[user.ID] = *user
		return nil
	})
}

func (r *UserRepository) IncrementTokenVersion(ctx context.Context, userID string) error {
	return r.with(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return repo.ErrNotFound
		}
		u.TokenVersion++
		u.UpdatedAt = r.stamp()
		st.users[userID] = u
		return nil
	})
}

type AuditLogRepository struct{ *base }

func (r *AuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	return r.with(func(st *state) error {
		log.ID = newID(log.ID)
		if log.CreatedAt.IsZero() {
			log.CreatedAt = r.stamp()
		}
		st.auditLogs = append(st.auditLogs, log)
		return nil
	})
}

func (r *AuditLogRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	out := []model.AuditLog{}
	err := r.with(func(st *state) error {
		limit, offset := f.Page()
		// 追加順の逆（新しい順）
		for i := len(st.auditLogs) - 1; i >= 0; i-- {
			l := st.auditLogs[i]
			if !f.Matches(l) {
				continue
			}
			if offset > 0 {
				offset--
				continue
			}
			if len(out) == limit {
				break
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}
