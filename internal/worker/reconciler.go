// Package worker は定期実行のバックグラウンド処理。
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/infra/events"
	"github.com/exclusiveng/server/internal/metrics"
	repo "github.com/exclusiveng/server/internal/repository"
	"github.com/exclusiveng/server/internal/usecase"
)

const defaultBatchSize = 100

// Reconciler は決済されないまま放置されたPENDING注文を取り消す。
// 在庫は決済確定まで減らしていないので戻さない。
type Reconciler struct {
	orders    repo.OrderRepository
	tx        repo.TransactionManager
	clock     usecase.Clock
	publisher events.Publisher
	log       *slog.Logger
	metrics   *metrics.Metrics

	ttl       time.Duration
	interval  time.Duration
	batchSize int
}

type ReconcilerConfig struct {
	TTL       time.Duration
	Interval  time.Duration // 0なら無効
	BatchSize int
}

func NewReconciler(
	orders repo.OrderRepository,
	tx repo.TransactionManager,
	clock usecase.Clock,
	publisher events.Publisher,
	log *slog.Logger,
	m *metrics.Metrics,
	cfg ReconcilerConfig,
) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Reconciler{
		orders:    orders,
		tx:        tx,
		clock:     clock,
		publisher: publisher,
		log:       log.With(slog.String("component", "reconciler")),
		metrics:   m,
		ttl:       cfg.TTL,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (r *Reconciler) Enabled() bool {
	return r.interval > 0 && r.ttl > 0
}

// Run はctxが終わるまでinterval毎にSweepを呼ぶ。
func (r *Reconciler) Run(ctx context.Context) {
	if !r.Enabled() {
		r.log.Info("reconciler disabled")
		return
	}
	r.log.Info("reconciler started",
		slog.Duration("interval", r.interval),
		slog.Duration("ttl", r.ttl))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("reconcile sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep はTTLを過ぎたPENDING注文をバッチ単位で取り消し、件数を返す。
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := r.clock.Now().Add(-r.ttl)
	cancelled := 0
	for {
		ids, err := r.orders.ListStalePending(ctx, cutoff, r.batchSize)
		if err != nil {
			return cancelled, fmt.Errorf("list stale orders: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		n := 0
		for _, id := range ids {
			ok, err := r.cancelOne(ctx, id, cutoff)
			if err != nil {
				// 1件の失敗で止めない。次回のSweepで再試行される
				r.log.Warn("cancel stale order failed", slog.String("order_id", id), slog.String("error", err.Error()))
				continue
			}
			if ok {
				n++
			}
		}
		cancelled += n
		// 全件失敗・スキップなら同じIDを取り続けるので抜ける
		if n == 0 || len(ids) < r.batchSize {
			break
		}
	}

	if cancelled > 0 {
		r.log.Info("stale orders cancelled", slog.Int("count", cancelled))
	}
	r.metrics.StaleOrdersCancelled(cancelled)
	return cancelled, nil
}

func (r *Reconciler) cancelOne(ctx context.Context, orderID string, cutoff time.Time) (bool, error) {
	var cancelled model.Order
	var changed bool
	err := r.tx.WithinTx(ctx, func(tx repo.TxRepos) error {
		changed = false
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		// ロック待ちの間に決済確定された
		if o.Status != model.OrderStatusPending || !o.CreatedAt.Before(cutoff) {
			return nil
		}

		if err := tx.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled); err != nil {
			return err
		}
		now := r.clock.Now()
		if err := tx.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  model.SystemActorID,
			Action:       model.AuditActionCancelStaleOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   `{"status":"pending"}`,
			AfterJSON:    `{"status":"cancelled"}`,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		o.Status = model.OrderStatusCancelled
		o.UpdatedAt = now
		cancelled = o
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}

	pubErr := events.PublishAfterCommit(ctx, r.publisher, events.OrderEvent{
		Type:        events.TypeOrderCancelled,
		OrderID:     cancelled.ID,
		UserID:      cancelled.UserID,
		Status:      string(cancelled.Status),
		TotalAmount: cancelled.TotalAmount,
		OccurredAt:  cancelled.UpdatedAt,
	})
	r.metrics.EventPublished(events.TypeOrderCancelled, pubErr)
	if pubErr != nil {
		r.log.Error("publish order event failed", slog.String("order_id", cancelled.ID), slog.String("error", pubErr.Error()))
	}
	return true, nil
}
