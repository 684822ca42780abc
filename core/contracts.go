package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// OrderStore is the order ledger. Create must rely on the storage layer's
// (email, product_handle) uniqueness, not a prior select, so concurrent
// deliveries race safely.
type OrderStore interface {
	Create(ctx context.Context, email string, productHandle string) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	GetByEmailHandle(ctx context.Context, email string, productHandle string) (Order, error)
	UpdateLinks(ctx context.Context, orderID string, links OrderLinks) error
	ListForUser(ctx context.Context, filter OrderFilter) ([]Order, error)
	UpdateCategoryForHandle(ctx context.Context, productHandle string, categoryHandle string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type ResetTokenStore interface {
	Upsert(ctx context.Context, token ResetToken) error
	Get(ctx context.Context, email string, tokenType TokenType) (ResetToken, error)
	DeleteForEmail(ctx context.Context, email string) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Visibility   CatalogScope
	Locale       string
}

// AccountStore wraps the external account collaborator. Email uniqueness is
// enforced by the store itself; callers treat "already exists" as a
// legitimate outcome requiring re-fetch.
type AccountStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserInfo, error)
	GetByEmails(ctx context.Context, emails []string) (map[string]UserInfo, error)
	GetByID(ctx context.Context, id int64) (UserInfo, error)
	SetPasswordHash(ctx context.Context, email string, passwordHash string) error
}

// CatalogStore wraps the catalog collaborator, addressable by numeric book id
// and by storefront handle.
type CatalogStore interface {
	GetByHandles(ctx context.Context, handles []string) (map[string]BookRef, error)
	GetByID(ctx context.Context, id int64) (BookRef, error)
	FreeBookIDs(ctx context.Context) ([]int64, error)
}

type ShelfStore interface {
	EnsureWishlist(ctx context.Context, userID int64, locale string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type BookLink struct {
	BookID    int64
	Title     string
	ReaderURL string
}

type PurchaseNotification struct {
	Email    string
	Name     string
	Locale   string
	AuthLink string
	Books    []BookLink
}

// Mailer is the fire-and-forget outbound queue capability. Enqueue failure is
// reported, never retried here, and never unwinds committed mutations.
type Mailer interface {
	EnqueuePurchaseNotification(ctx context.Context, msg PurchaseNotification) error
}

type NopMailer struct{}

func (NopMailer) EnqueuePurchaseNotification(context.Context, PurchaseNotification) error {
	return nil
}

var _ Mailer = NopMailer{}

type StoreProvider interface {
	OrderStore() OrderStore
	ResetTokenStore() ResetTokenStore
	AccountStore() AccountStore
	CatalogStore() CatalogStore
	ShelfStore() ShelfStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// IdentityResolver maps commerce identities to local ones, creating accounts
// on demand. CreateUserForEmail returns the generated plaintext password
// exactly once; it is never re-derivable afterward.
type IdentityResolver interface {
	LookupUsersByEmails(ctx context.Context, emails []string) (map[string]UserInfo, error)
	CreateUserForEmail(ctx context.Context, email string, name string) (UserInfo, string, error)
	LookupBooksByHandles(ctx context.Context, handles []string) (map[string]BookRef, error)
}

// CredentialIssuer mints and resolves single-use encrypted login tokens.
type CredentialIssuer interface {
	IssueInitialToken(ctx context.Context, email string, tempPassword string, bookIDs []int64) (string, error)
	IssueResetToken(ctx context.Context, email string, bookIDs []int64) (string, error)
	DecodePayload(ctx context.Context, token string) (AuthLinkPayload, error)
	ResolvePendingReset(ctx context.Context, email string, token string) (AuthLinkPayload, error)
	CompletePasswordChange(ctx context.Context, email string, newPassword string) error
}

// InboundRequest is one raw webhook delivery as received from the storefront.
type InboundRequest struct {
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}
