package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-fulfillment/core"
)

type UserStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// CreateUser inserts without a prior existence check. The email unique
// constraint arbitrates concurrent provisioning; the loser surfaces
// core.ErrUserExists so callers can re-fetch.
func (s *UserStore) CreateUser(ctx context.Context, input core.CreateUserInput) (core.UserInfo, error) {
	if s == nil || s.db == nil {
		return core.UserInfo{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	email := core.NormalizeEmail(input.Email)
	if email == "" {
		return core.UserInfo{}, fmt.Errorf("sqlstore: user email is required")
	}
	if input.PasswordHash == "" {
		return core.UserInfo{}, fmt.Errorf("sqlstore: password hash is required")
	}

	now := s.now()
	record := &userRecord{
		Email:        email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Visibility:   string(input.Visibility),
		Locale:       input.Locale,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.UserInfo{}, fmt.Errorf("sqlstore: user %s: %w", email, core.ErrUserExists)
		}
		return core.UserInfo{}, err
	}
	return userToDomain(record), nil
}

func (s *UserStore) GetByEmails(ctx context.Context, emails []string) (map[string]core.UserInfo, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: user store is not configured")
	}
	normalized := make([]string, 0, len(emails))
	for _, email := range emails {
		if email = core.NormalizeEmail(email); email != "" {
			normalized = append(normalized, email)
		}
	}
	if len(normalized) == 0 {
		return map[string]core.UserInfo{}, nil
	}

	records := []*userRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.email IN (?)", bun.In(normalized)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.UserInfo, len(records))
	for _, record := range records {
		out[record.Email] = userToDomain(record)
	}
	return out, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (core.UserInfo, error) {
	if s == nil || s.db == nil {
		return core.UserInfo{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserInfo{}, fmt.Errorf("sqlstore: user %d: %w", id, core.ErrUserNotFound)
		}
		return core.UserInfo{}, err
	}
	return userToDomain(record), nil
}

func (s *UserStore) SetPasswordHash(ctx context.Context, email string, passwordHash string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("sqlstore: email is required")
	}
	if passwordHash == "" {
		return fmt.Errorf("sqlstore: password hash is required")
	}
	result, err := s.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", s.now()).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("sqlstore: user %s: %w", email, core.ErrUserNotFound)
	}
	return nil
}

func userToDomain(record *userRecord) core.UserInfo {
	if record == nil {
		return core.UserInfo{}
	}
	return core.UserInfo{
		ID:         record.ID,
		Email:      record.Email,
		Name:       record.Name,
		Role:       record.Role,
		Visibility: core.CatalogScope(record.Visibility),
		Locale:     record.Locale,
	}
}

var _ core.AccountStore = (*UserStore)(nil)
