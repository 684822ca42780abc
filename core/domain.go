package core

import (
	"strings"
	"time"
)

const (
	EventProductChanged = "PRODUCT_CHANGED"
	EventPaymentChanged = "PAYMENT_CHANGED"
)

const PaymentStatusPaid = "paid"

// DeliveryOutcome classifies one webhook delivery end to end.
type DeliveryOutcome string

const (
	OutcomeRejected DeliveryOutcome = "rejected"
	OutcomeIgnored  DeliveryOutcome = "ignored"
	OutcomeRetry    DeliveryOutcome = "retry"
	OutcomeOK       DeliveryOutcome = "ok"
	OutcomeError    DeliveryOutcome = "error"
)

type CatalogScope string

const (
	ScopeAll       CatalogScope = "all"
	ScopePurchased CatalogScope = "purchased"
	ScopeFree      CatalogScope = "free"
)

func ParseCatalogScope(value string) CatalogScope {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case string(ScopePurchased):
		return ScopePurchased
	case string(ScopeFree):
		return ScopeFree
	default:
		return ScopeAll
	}
}

// Order records one purchased line item, linking buyer email and storefront
// handle to local identities. (email, product_handle) is unique; the storage
// layer enforces it so concurrent re-delivery cannot duplicate.
type Order struct {
	ID             string
	Email          string
	ProductHandle  string
	LinkedUserID   *int64
	LinkedBookID   *int64
	CategoryHandle string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderLinks is a partial update: only non-nil fields are written.
type OrderLinks struct {
	UserID *int64
	BookID *int64
}

// OrderFilter combines its fields with OR semantics.
type OrderFilter struct {
	UserID *int64
	Email  string
}

type TokenType string

const (
	TokenTypeInitial TokenType = "initial"
	TokenTypeReset   TokenType = "reset"
)

// ResetToken is the stored half of a credential flow, one row per
// (email, type). Initial rows always carry a password hash, reset rows never
// do.
type ResetToken struct {
	Email        string
	Type         TokenType
	PasswordHash string
	CreatedAt    time.Time
	LastSentAt   time.Time
}

// AuthLinkPayload travels inside the encrypted login link. The field set is
// closed: unknown fields never round-trip. A payload without a temp password
// is reset-type and expires ResetTokenTTL after IssuedAt; a provisioning
// payload is invalidated by overwrite or consumption instead.
type AuthLinkPayload struct {
	Email        string
	TempPassword *string
	BookIDs      []int64
	IssuedAt     time.Time
}

func (p AuthLinkPayload) IsReset() bool {
	return p.TempPassword == nil
}

// CatalogState is computed per request and never cached across requests,
// because order linkage can change between requests.
type CatalogState struct {
	IsAdmin          bool
	IsAuthenticated  bool
	PurchasedBookIDs map[int64]struct{}
}

func (s CatalogState) Purchased(bookID int64) bool {
	if len(s.PurchasedBookIDs) == 0 {
		return false
	}
	_, ok := s.PurchasedBookIDs[bookID]
	return ok
}

type UserInfo struct {
	ID         int64
	Email      string
	Name       string
	Role       string
	Visibility CatalogScope
	Locale     string
}

const RoleAdmin = "admin"

func (u UserInfo) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(u.Role), RoleAdmin)
}

type BookRef struct {
	ID           int64
	Title        string
	Handle       string
	LanguageCode string
	Price        float64
}

type CartItem struct {
	ProductHandle string `json:"product_handle"`
}

// PaymentEvent is the PAYMENT_CHANGED webhook body.
type PaymentEvent struct {
	Email         string     `json:"email"`
	OrderID       string     `json:"order_id"`
	Name          string     `json:"name,omitempty"`
	OriginURL     string     `json:"origin_url,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	Cart          []CartItem `json:"cart"`
}

// ProductEvent is the PRODUCT_CHANGED webhook body, a metadata sync with no
// commerce effect.
type ProductEvent struct {
	ProductHandle  string `json:"product_handle"`
	CategoryHandle string `json:"category_handle,omitempty"`
	Title          string `json:"title,omitempty"`
}

// DeliveryReceipt summarizes what one delivery changed. Counters stay zero on
// idempotent re-delivery.
type DeliveryReceipt struct {
	Outcome           DeliveryOutcome
	StatusCode        int
	OrdersCreated     int
	AccountCreated    bool
	TokenIssued       bool
	MailEnqueued      bool
	UnresolvedHandles []string
}

// NormalizeEmail lowercases and trims; every email key in the system goes
// through this before storage or comparison.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func NormalizeHandle(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
