package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/exclusiveng/server/internal/domain/model"
	"github.com/exclusiveng/server/internal/infra/events"
	"github.com/exclusiveng/server/internal/metrics"
	repo "github.com/exclusiveng/server/internal/repository"
)

type SettleInput struct {
	OrderID     string
	Reference   string
	AmountMinor int64 // ゲートウェイが確認した支払額
}

type SettleResult struct {
	Order model.Order
	// すでにPAIDだった（何も書き込んでいない）
	AlreadyPaid bool
}

// Settlement は PENDING→PAID の確定処理。
// 注文行→商品行（ID昇順）の順でロックし、1トランザクションで
// 在庫減算・台帳記録・注文更新・カート明細削除を行う。
type Settlement struct {
	tx        repo.TransactionManager
	clock     Clock
	publisher events.Publisher
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewSettlement(tx repo.TransactionManager, clock Clock, publisher events.Publisher, log *slog.Logger, m *metrics.Metrics) *Settlement {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Settlement{tx: tx, clock: clock, publisher: publisher, log: log, metrics: m}
}

func (s *Settlement) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	reference := in.Reference
	if reference == "" {
		reference = in.OrderID
	}
	log := s.log.With(slog.String("order_id", in.OrderID), slog.String("reference", reference))

	var res SettleResult
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res = SettleResult{}

		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		//二重通知はここで止まる
		if o.Status == model.OrderStatusPaid {
			res = SettleResult{Order: o, AlreadyPaid: true}
			return nil
		}
		if o.Status != model.OrderStatusPending {
			return fmt.Errorf("%w: %s", ErrOrderNotSettleable, o.Status)
		}

		if expected := o.AmountMinor(); in.AmountMinor != expected {
			return fmt.Errorf("%w: paid %d, expected %d", ErrAmountMismatch, in.AmountMinor, expected)
		}

		// 同じ商品が複数行あってもまとめて扱う
		need := make(map[string]int64)
		titles := make(map[string]string)
		for _, it := range o.Items {
			need[it.ProductID] += it.Quantity
			titles[it.ProductID] = it.ProductTitle
		}
		productIDs := make([]string, 0, len(need))
		for id := range need {
			productIDs = append(productIDs, id)
		}
		sort.Strings(productIDs)

		locked := make([]model.Product, 0, len(productIDs))
		for _, id := range productIDs {
			p, err := r.Inventory().LockProduct(ctx, id)
			if errors.Is(err, repo.ErrNotFound) {
				return &ProductUnavailableError{ProductID: id, ProductTitle: titles[id]}
			}
			if err != nil {
				return err
			}
			if p.DeletedAt.Valid {
				return &ProductUnavailableError{ProductID: id, ProductTitle: p.Title}
			}
			if p.StockQuantity < need[id] {
				return &InsufficientStockError{
					ProductID:    id,
					ProductTitle: p.Title,
					Requested:    need[id],
					Available:    p.StockQuantity,
				}
			}
			locked = append(locked, p)
		}

		now := s.clock.Now()
		orderID := o.ID
		for _, p := range locked {
			if err := r.Inventory().SetStock(ctx, p.ID, p.StockQuantity-need[p.ID]); err != nil {
				return err
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID: p.ID,
				OrderID:   &orderID,
				Delta:     -need[p.ID],
				Reason:    model.AdjustmentOrderSettled,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if err := r.Orders().MarkPaid(ctx, o.ID, reference, now); err != nil {
			return err
		}

		//カート行は残して明細だけ消す
		cart, err := r.Carts().FindByUserID(ctx, o.UserID)
		switch {
		case err == nil:
			if err := r.Carts().Clear(ctx, cart.ID); err != nil {
				return err
			}
		case errors.Is(err, repo.ErrNotFound):
		default:
			return err
		}

		ref := reference
		o.Status = model.OrderStatusPaid
		o.PaymentReference = &ref
		o.PaidAt = &now
		o.UpdatedAt = now
		res = SettleResult{Order: o}
		return nil
	})
	if err != nil {
		classified := classifySettlementError(err)
		var se *SettlementError
		if errors.As(classified, &se) {
			log.Warn("settlement failed",
				slog.String("kind", string(se.Kind)),
				slog.Bool("retryable", se.Retryable),
				slog.String("error", err.Error()))
			s.metrics.SettlementOutcome(string(se.Kind))
		} else {
			log.Info("settlement rejected", slog.String("error", err.Error()))
			s.metrics.SettlementOutcome("not_found")
		}
		return SettleResult{}, classified
	}

	if res.AlreadyPaid {
		log.Info("settlement skipped, order already paid")
		s.metrics.SettlementOutcome("idempotent")
		return res, nil
	}

	log.Info("settlement committed", slog.String("user_id", res.Order.UserID))
	s.metrics.SettlementOutcome("settled")

	// コミット後の通知。失敗しても決済確定は取り消さない。
	pubErr := events.PublishAfterCommit(ctx, s.publisher, events.OrderEvent{
		Type:        events.TypeOrderPaid,
		OrderID:     res.Order.ID,
		UserID:      res.Order.UserID,
		Status:      string(res.Order.Status),
		TotalAmount: res.Order.TotalAmount,
		Reference:   reference,
		OccurredAt:  *res.Order.PaidAt,
	})
	s.metrics.EventPublished(events.TypeOrderPaid, pubErr)
	if pubErr != nil {
		log.Error("publish order event failed", slog.String("error", pubErr.Error()))
	}
	return res, nil
}
