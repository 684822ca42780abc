package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type orderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID             string    `bun:"id,pk"`
	Email          string    `bun:"email,notnull"`
	ProductHandle  string    `bun:"product_handle,notnull"`
	LinkedUserID   *int64    `bun:"linked_user_id"`
	LinkedBookID   *int64    `bun:"linked_book_id"`
	CategoryHandle string    `bun:"category_handle"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// resetTokenRecord keys on (email, token_type): at most one pending credential
// per flavor per address.
type resetTokenRecord struct {
	bun.BaseModel `bun:"table:reset_tokens,alias:rt"`

	Email        string    `bun:"email,pk"`
	TokenType    string    `bun:"token_type,pk"`
	PasswordHash string    `bun:"password_hash"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	LastSentAt   time.Time `bun:"last_sent_at,nullzero,notnull,default:current_timestamp"`
}

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Email        string    `bun:"email,notnull,unique"`
	Name         string    `bun:"name"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	Visibility   string    `bun:"visibility,notnull"`
	Locale       string    `bun:"locale,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type bookRecord struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Title        string    `bun:"title,notnull"`
	Handle       string    `bun:"handle,notnull,unique"`
	LanguageCode string    `bun:"language_code"`
	Price        float64   `bun:"price,notnull,default:0"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type shelfRecord struct {
	bun.BaseModel `bun:"table:shelves,alias:sh"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	Kind      string    `bun:"kind,notnull"`
	Name      string    `bun:"name,notnull"`
	Locale    string    `bun:"locale"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
