package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-fulfillment/core"
)

const shelfKindWishlist = "wishlist"

var wishlistNames = map[string]string{
	"en": "Wishlist",
	"de": "Merkliste",
	"fr": "Liste de souhaits",
	"es": "Lista de deseos",
}

type ShelfStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewShelfStore(db *bun.DB) (*ShelfStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ShelfStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// EnsureWishlist creates the default wishlist shelf for a new account.
// Re-running for the same user is a no-op; the (user_id, kind) constraint
// absorbs the race.
func (s *ShelfStore) EnsureWishlist(ctx context.Context, userID int64, locale string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: shelf store is not configured")
	}
	if userID <= 0 {
		return fmt.Errorf("sqlstore: user id is required")
	}
	name, ok := wishlistNames[locale]
	if !ok {
		name = wishlistNames["en"]
	}
	record := &shelfRecord{
		UserID:    userID,
		Kind:      shelfKindWishlist,
		Name:      name,
		Locale:    locale,
		CreatedAt: s.now(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

var _ core.ShelfStore = (*ShelfStore)(nil)
