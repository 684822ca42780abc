package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-fulfillment/core"
)

type BookStore struct {
	db *bun.DB
}

func NewBookStore(db *bun.DB) (*BookStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &BookStore{db: db}, nil
}

func (s *BookStore) GetByHandles(ctx context.Context, handles []string) (map[string]core.BookRef, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: book store is not configured")
	}
	normalized := make([]string, 0, len(handles))
	for _, handle := range handles {
		if handle = core.NormalizeHandle(handle); handle != "" {
			normalized = append(normalized, handle)
		}
	}
	if len(normalized) == 0 {
		return map[string]core.BookRef{}, nil
	}

	records := []*bookRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.handle IN (?)", bun.In(normalized)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.BookRef, len(records))
	for _, record := range records {
		out[record.Handle] = bookToDomain(record)
	}
	return out, nil
}

func (s *BookStore) GetByID(ctx context.Context, id int64) (core.BookRef, error) {
	if s == nil || s.db == nil {
		return core.BookRef{}, fmt.Errorf("sqlstore: book store is not configured")
	}
	record := &bookRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.BookRef{}, fmt.Errorf("sqlstore: book %d: %w", id, core.ErrBookNotFound)
		}
		return core.BookRef{}, err
	}
	return bookToDomain(record), nil
}

func (s *BookStore) FreeBookIDs(ctx context.Context) ([]int64, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: book store is not configured")
	}
	ids := []int64{}
	err := s.db.NewSelect().
		Model((*bookRecord)(nil)).
		Column("id").
		Where("price = 0").
		OrderExpr("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func bookToDomain(record *bookRecord) core.BookRef {
	if record == nil {
		return core.BookRef{}
	}
	return core.BookRef{
		ID:           record.ID,
		Title:        record.Title,
		Handle:       record.Handle,
		LanguageCode: record.LanguageCode,
		Price:        record.Price,
	}
}

var _ core.CatalogStore = (*BookStore)(nil)
