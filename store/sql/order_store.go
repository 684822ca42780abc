package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-fulfillment/core"
)

type OrderStore struct {
	db   *bun.DB
	repo repository.Repository[*orderRecord]
	now  func() time.Time
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	return &OrderStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Create inserts without a prior existence check. The (email, product_handle)
// unique constraint arbitrates concurrent deliveries; the loser surfaces
// core.ErrOrderExists.
func (s *OrderStore) Create(ctx context.Context, email string, productHandle string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	email = core.NormalizeEmail(email)
	productHandle = core.NormalizeHandle(productHandle)
	if email == "" || productHandle == "" {
		return core.Order{}, fmt.Errorf("sqlstore: email and product handle are required")
	}

	now := s.now()
	record := &orderRecord{
		ID:            uuid.NewString(),
		Email:         email,
		ProductHandle: productHandle,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Order{}, fmt.Errorf("sqlstore: order for %s/%s: %w", email, productHandle, core.ErrOrderExists)
		}
		return core.Order{}, err
	}
	return orderToDomain(record), nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Order{}, fmt.Errorf("sqlstore: order id is required")
	}
	record := &orderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Order{}, fmt.Errorf("sqlstore: order %q: %w", id, core.ErrOrderNotFound)
		}
		return core.Order{}, err
	}
	return orderToDomain(record), nil
}

func (s *OrderStore) GetByEmailHandle(ctx context.Context, email string, productHandle string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	email = core.NormalizeEmail(email)
	productHandle = core.NormalizeHandle(productHandle)
	record := &orderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.product_handle = ?", productHandle).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Order{}, fmt.Errorf("sqlstore: order %s/%s: %w", email, productHandle, core.ErrOrderNotFound)
		}
		return core.Order{}, err
	}
	return orderToDomain(record), nil
}

// UpdateLinks sets only the provided linkage columns; nil fields keep their
// stored values.
func (s *OrderStore) UpdateLinks(ctx context.Context, orderID string, links core.OrderLinks) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("sqlstore: order id is required")
	}
	if links.UserID == nil && links.BookID == nil {
		return nil
	}

	query := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", orderID)
	if links.UserID != nil {
		query = query.Set("linked_user_id = ?", *links.UserID)
	}
	if links.BookID != nil {
		query = query.Set("linked_book_id = ?", *links.BookID)
	}
	result, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("sqlstore: order %q: %w", orderID, core.ErrOrderNotFound)
	}
	return nil
}

// ListForUser matches on linked user id OR normalized email so orders placed
// before the account existed still count.
func (s *OrderStore) ListForUser(ctx context.Context, filter core.OrderFilter) ([]core.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: order store is not configured")
	}
	email := core.NormalizeEmail(filter.Email)
	if filter.UserID == nil && email == "" {
		return nil, fmt.Errorf("sqlstore: order filter requires a user id or email")
	}

	records := []*orderRecord{}
	query := s.db.NewSelect().Model(&records)
	switch {
	case filter.UserID != nil && email != "":
		query = query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.linked_user_id = ?", *filter.UserID).
				WhereOr("?TableAlias.email = ?", email)
		})
	case filter.UserID != nil:
		query = query.Where("?TableAlias.linked_user_id = ?", *filter.UserID)
	default:
		query = query.Where("?TableAlias.email = ?", email)
	}
	if err := query.OrderExpr("?TableAlias.created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, orderToDomain(record))
	}
	return orders, nil
}

func (s *OrderStore) UpdateCategoryForHandle(ctx context.Context, productHandle string, categoryHandle string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	productHandle = core.NormalizeHandle(productHandle)
	if productHandle == "" {
		return 0, fmt.Errorf("sqlstore: product handle is required")
	}

	result, err := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set("category_handle = ?", core.NormalizeHandle(categoryHandle)).
		Set("updated_at = ?", s.now()).
		Where("product_handle = ?", productHandle).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: order id is required")
	}
	result, err := s.db.NewDelete().
		Model((*orderRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("sqlstore: order %q: %w", id, core.ErrOrderNotFound)
	}
	return nil
}

func orderToDomain(record *orderRecord) core.Order {
	if record == nil {
		return core.Order{}
	}
	return core.Order{
		ID:             record.ID,
		Email:          record.Email,
		ProductHandle:  record.ProductHandle,
		LinkedUserID:   cloneInt64Pointer(record.LinkedUserID),
		LinkedBookID:   cloneInt64Pointer(record.LinkedBookID),
		CategoryHandle: record.CategoryHandle,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func cloneInt64Pointer(input *int64) *int64 {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.OrderStore = (*OrderStore)(nil)
