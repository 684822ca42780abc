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

type ResetTokenStore struct {
	db *bun.DB
}

func NewResetTokenStore(db *bun.DB) (*ResetTokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ResetTokenStore{db: db}, nil
}

// Upsert overwrites any pending row for (email, type). Overwriting is the
// point: the previous credential's hash is gone and its link dies with it.
func (s *ResetTokenStore) Upsert(ctx context.Context, token core.ResetToken) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: reset token store is not configured")
	}
	email := core.NormalizeEmail(token.Email)
	if email == "" {
		return fmt.Errorf("sqlstore: token email is required")
	}
	if token.Type != core.TokenTypeInitial && token.Type != core.TokenTypeReset {
		return fmt.Errorf("sqlstore: unknown token type %q", token.Type)
	}

	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	lastSentAt := token.LastSentAt
	if lastSentAt.IsZero() {
		lastSentAt = createdAt
	}
	record := &resetTokenRecord{
		Email:        email,
		TokenType:    string(token.Type),
		PasswordHash: token.PasswordHash,
		CreatedAt:    createdAt,
		LastSentAt:   lastSentAt,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (email, token_type) DO UPDATE").
		Set("password_hash = EXCLUDED.password_hash").
		Set("created_at = EXCLUDED.created_at").
		Set("last_sent_at = EXCLUDED.last_sent_at").
		Exec(ctx)
	return err
}

func (s *ResetTokenStore) Get(ctx context.Context, email string, tokenType core.TokenType) (core.ResetToken, error) {
	if s == nil || s.db == nil {
		return core.ResetToken{}, fmt.Errorf("sqlstore: reset token store is not configured")
	}
	email = core.NormalizeEmail(email)
	record := &resetTokenRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.token_type = ?", string(tokenType)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ResetToken{}, fmt.Errorf("sqlstore: credential %s/%s: %w", email, tokenType, core.ErrPendingResetNotFound)
		}
		return core.ResetToken{}, err
	}
	return core.ResetToken{
		Email:        record.Email,
		Type:         core.TokenType(record.TokenType),
		PasswordHash: record.PasswordHash,
		CreatedAt:    record.CreatedAt,
		LastSentAt:   record.LastSentAt,
	}, nil
}

// DeleteForEmail retires every pending credential for the address, both the
// initial and the reset flavor.
func (s *ResetTokenStore) DeleteForEmail(ctx context.Context, email string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: reset token store is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("sqlstore: email is required")
	}
	_, err := s.db.NewDelete().
		Model((*resetTokenRecord)(nil)).
		Where("email = ?", email).
		Exec(ctx)
	return err
}

func (s *ResetTokenStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: reset token store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*resetTokenRecord)(nil)).
		Where("created_at < ?", cutoff).
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

var _ core.ResetTokenStore = (*ResetTokenStore)(nil)
