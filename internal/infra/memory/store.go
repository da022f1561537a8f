// Package memory はDBを使わないリポジトリ実装。
// テストとSTORE_DRIVER=memoryの開発起動で使う。
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/exclusiveng/server/internal/domain/model"
	repo "github.com/exclusiveng/server/internal/repository"

	"github.com/google/uuid"
)

// DBのCHECK制約違反に相当
var ErrCheckViolation = errors.New("memory: check constraint violated")

type state struct {
	users       map[string]model.User
	products    map[string]model.Product
	carts       map[string]model.Cart
	cartItems   []model.CartItem
	orders      map[string]model.Order
	orderItems  map[string][]model.OrderItem
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func newState() *state {
	return &state{
		users:      make(map[string]model.User),
		products:   make(map[string]model.Product),
		carts:      make(map[string]model.Cart),
		orders:     make(map[string]model.Order),
		orderItems: make(map[string][]model.OrderItem),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	c.cartItems = append([]model.CartItem(nil), s.cartItems...)
	c.adjustments = append([]model.InventoryAdjustment(nil), s.adjustments...)
	c.auditLogs = append([]model.AuditLog(nil), s.auditLogs...)
	return c
}

// Store は全テーブルを1つのmutexで守る。
// WithinTx はコピーに対して fn を実行し、成功した時だけ差し替える。
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// 時刻を固定したいテスト用
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(newTxRepos(&base{s: s, tx: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// base はトランザクション内なら tx を、外なら都度ロックして本体を触る。
type base struct {
	s  *Store
	tx *state
}

func (b *base) with(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return fn(b.s.st)
}

func (b *base) stamp() time.Time {
	return b.s.now()
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func paginate[T any](all []T, page, limit int) []T {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		return []T{}
	}
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]T{}, all[start:end]...)
}

// 新しい順（created_at desc, id desc）
func sortNewest[T any](items []T, createdAt func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := createdAt(items[i]), createdAt(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]) > id(items[j])
	})
}

type txRepos struct {
	orders     *OrderRepository
	orderItems *OrderItemRepository
	carts      *CartRepository
	inventory  *InventoryRepository
	products   *ProductRepository
	auditLogs  *AuditLogRepository
}

func newTxRepos(b *base) *txRepos {
	return &txRepos{
		orders:     &OrderRepository{b},
		orderItems: &OrderItemRepository{b},
		carts:      &CartRepository{b},
		inventory:  &InventoryRepository{b},
		products:   &ProductRepository{b},
		auditLogs:  &AuditLogRepository{b},
	}
}

func (r *txRepos) Orders() repo.OrderRepository         { return r.orders }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *txRepos) Carts() repo.CartRepository           { return r.carts }
func (r *txRepos) CartItems() repo.CartItemRepository   { return r.carts }
func (r *txRepos) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *txRepos) Products() repo.ProductRepository     { return r.products }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

// トランザクション外で使うリポジトリ
func (s *Store) Users() *UserRepository           { return &UserRepository{&base{s: s}} }
func (s *Store) Products() *ProductRepository     { return &ProductRepository{&base{s: s}} }
func (s *Store) Orders() *OrderRepository         { return &OrderRepository{&base{s: s}} }
func (s *Store) OrderItems() *OrderItemRepository { return &OrderItemRepository{&base{s: s}} }
func (s *Store) Carts() *CartRepository           { return &CartRepository{&base{s: s}} }
func (s *Store) Inventory() *InventoryRepository  { return &InventoryRepository{&base{s: s}} }
func (s *Store) AuditLogs() *AuditLogRepository   { return &AuditLogRepository{&base{s: s}} }

var (
	_ repo.TransactionManager  = (*Store)(nil)
	_ repo.UserRepository      = (*UserRepository)(nil)
	_ repo.ProductRepository   = (*ProductRepository)(nil)
	_ repo.OrderRepository     = (*OrderRepository)(nil)
	_ repo.OrderItemRepository = (*OrderItemRepository)(nil)
	_ repo.CartRepository      = (*CartRepository)(nil)
	_ repo.CartItemRepository  = (*CartRepository)(nil)
	_ repo.InventoryRepository = (*InventoryRepository)(nil)
	_ repo.AuditLogRepository  = (*AuditLogRepository)(nil)
)
