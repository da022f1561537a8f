package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/infra/events"
	"github.com/exclusiveng/server/internal/metrics"
	repo "github.com/exclusiveng/server/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	orders    repo.OrderRepository
	clock     Clock
	publisher events.Publisher
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	clock Clock,
	publisher events.Publisher,
	log *slog.Logger,
	m *metrics.Metrics,
) *AdminOrderUsecase {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AdminOrderUsecase{tx: tx, orders: orders, clock: clock, publisher: publisher, log: log, metrics: m}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧（全ユーザー）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	page, limit, err := normalizePage(f.Page, f.Limit)
	if err != nil {
		return OrderListOutput{}, err
	}
	f.Page, f.Limit = page, limit
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid period")
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return OrderListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := OrderListOutput{Items: make([]OrderOutput, 0, len(orders)), Total: total, Page: f.Page, Limit: f.Limit}
	for _, o := range orders {
		out.Items = append(out.Items, toOrderOutput(o))
	}
	return out, nil
}

type statusChange struct {
	Status string `json:"status"`
}

// ステータス更新。PAID/PROCESSINGからのキャンセルは在庫を戻す。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID string, orderID string, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if strings.TrimSpace(actorAdminUserID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	newStatus, ok := model.ParseOrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	// PENDING→PAIDは決済確定だけが行う
	if newStatus == model.OrderStatusPaid {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "orders are marked paid only by payment verification")
	}

	var updated model.Order
	var changed bool
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		changed = false
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			updated = o
			return nil
		}
		if !model.CanTransition(o.Status, newStatus) {
			return NewHTTPError(http.StatusConflict, "cannot change order status from "+string(o.Status)+" to "+string(newStatus))
		}

		now := u.clock.Now()
		if newStatus == model.OrderStatusCancelled && o.Status.HoldsStock() {
			if err := restock(ctx, r, o, actorAdminUserID); err != nil {
				return err
			}
		}

		if err := r.Orders().UpdateStatus(ctx, o.ID, newStatus); err != nil {
			return err
		}

		before, _ := json.Marshal(statusChange{Status: string(o.Status)})
		after, _ := json.Marshal(statusChange{Status: string(newStatus)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		o.Status = newStatus
		o.UpdatedAt = now
		updated = o
		changed = true
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok || errors.Is(err, ErrOrderNotFound) {
			return OrderOutput{}, err
		}
		u.log.Error("update order status failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if changed {
		u.log.Info("order status updated",
			slog.String("order_id", updated.ID),
			slog.String("status", string(updated.Status)),
			slog.String("actor_user_id", actorAdminUserID))
		if updated.Status == model.OrderStatusCancelled {
			pubErr := events.PublishAfterCommit(ctx, u.publisher, events.OrderEvent{
				Type:        events.TypeOrderCancelled,
				OrderID:     updated.ID,
				UserID:      updated.UserID,
				Status:      string(updated.Status),
				TotalAmount: updated.TotalAmount,
				OccurredAt:  updated.UpdatedAt,
			})
			u.metrics.EventPublished(events.TypeOrderCancelled, pubErr)
			if pubErr != nil {
				u.log.Error("publish order event failed", slog.String("order_id", updated.ID), slog.String("error", pubErr.Error()))
			}
		}
	}
	return toOrderOutput(updated), nil
}

// 注文分の在庫を戻し、台帳に残す。ロック順は決済確定と同じ（商品ID昇順）。
func restock(ctx context.Context, r repo.TxRepos, o model.Order, actorUserID string) error {
	qty := make(map[string]int64)
	for _, it := range o.Items {
		qty[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	orderID := o.ID
	actor := actorUserID
	for _, id := range ids {
		if _, err := r.Inventory().LockProduct(ctx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				// 物理削除された商品は戻し先が無い
				continue
			}
			return err
		}
		if err := r.Inventory().IncreaseStock(ctx, id, qty[id]); err != nil {
			return err
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   id,
			ActorUserID: &actor,
			OrderID:     &orderID,
			Delta:       qty[id],
			Reason:      model.AdjustmentOrderCanceled,
		}); err != nil {
			return err
		}
	}
	return nil
}

// 期間パラメータ（RFC3339）。handlerでパースしてフィルタに入れる
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
