package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/goliatone/go-fulfillment/core"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordLength = 16

	lowerClass  = "abcdefghijkmnopqrstuvwxyz"
	upperClass  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitClass  = "23456789"
	symbolClass = "!@#$%^&*-_=+"
)

type Config struct {
	DefaultRole       string
	DefaultVisibility core.CatalogScope
	DefaultLocale     string
	BcryptCost        int
}

// Resolver maps commerce emails to local accounts and storefront handles to
// local book ids. Account creation defers the uniqueness guarantee to the
// account store's email constraint; the pre-check here is advisory only.
type Resolver struct {
	accounts core.AccountStore
	books    core.CatalogStore
	config   Config
}

func NewResolver(accounts core.AccountStore, books core.CatalogStore, cfg Config) (*Resolver, error) {
	if accounts == nil {
		return nil, fmt.Errorf("identity: account store is required")
	}
	if books == nil {
		return nil, fmt.Errorf("identity: catalog store is required")
	}
	if strings.TrimSpace(cfg.DefaultRole) == "" {
		cfg.DefaultRole = "user"
	}
	if cfg.DefaultVisibility == "" {
		cfg.DefaultVisibility = core.ScopePurchased
	}
	if strings.TrimSpace(cfg.DefaultLocale) == "" {
		cfg.DefaultLocale = "en"
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Resolver{
		accounts: accounts,
		books:    books,
		config:   cfg,
	}, nil
}

// LookupUsersByEmails batches account resolution. Both the query keys and the
// returned map keys are normalized (lowercase, trimmed).
func (r *Resolver) LookupUsersByEmails(ctx context.Context, emails []string) (map[string]core.UserInfo, error) {
	if r == nil || r.accounts == nil {
		return nil, fmt.Errorf("identity: resolver is not configured")
	}
	normalized := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		key := core.NormalizeEmail(email)
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}
	if len(normalized) == 0 {
		return map[string]core.UserInfo{}, nil
	}

	found, err := r.accounts.GetByEmails(ctx, normalized)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.UserInfo, len(found))
	for email, user := range found {
		out[core.NormalizeEmail(email)] = user
	}
	return out, nil
}

// CreateUserForEmail provisions an account with a random policy-conforming
// password and deployment defaults. The plaintext password is returned
// exactly once and never re-derivable afterward.
func (r *Resolver) CreateUserForEmail(ctx context.Context, email string, name string) (core.UserInfo, string, error) {
	if r == nil || r.accounts == nil {
		return core.UserInfo{}, "", fmt.Errorf("identity: resolver is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return core.UserInfo{}, "", fmt.Errorf("identity: email is required")
	}

	// Advisory pre-check; the store's unique constraint is the guarantee.
	existing, err := r.accounts.GetByEmails(ctx, []string{email})
	if err != nil {
		return core.UserInfo{}, "", err
	}
	if _, exists := existing[email]; exists {
		return core.UserInfo{}, "", fmt.Errorf("identity: %s: %w", email, core.ErrUserExists)
	}

	password, err := GeneratePassword(passwordLength)
	if err != nil {
		return core.UserInfo{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.config.BcryptCost)
	if err != nil {
		return core.UserInfo{}, "", fmt.Errorf("identity: hash password: %w", err)
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = email
	}
	user, err := r.accounts.CreateUser(ctx, core.CreateUserInput{
		Email:        email,
		Name:         displayName,
		PasswordHash: string(hash),
		Role:         r.config.DefaultRole,
		Visibility:   r.config.DefaultVisibility,
		Locale:       r.config.DefaultLocale,
	})
	if err != nil {
		return core.UserInfo{}, "", err
	}
	return user, password, nil
}

// LookupBooksByHandles batches handle resolution, case-insensitive on both
// sides.
func (r *Resolver) LookupBooksByHandles(ctx context.Context, handles []string) (map[string]core.BookRef, error) {
	if r == nil || r.books == nil {
		return nil, fmt.Errorf("identity: resolver is not configured")
	}
	normalized := make([]string, 0, len(handles))
	seen := make(map[string]struct{}, len(handles))
	for _, handle := range handles {
		key := core.NormalizeHandle(handle)
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}
	if len(normalized) == 0 {
		return map[string]core.BookRef{}, nil
	}

	found, err := r.books.GetByHandles(ctx, normalized)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.BookRef, len(found))
	for handle, book := range found {
		out[core.NormalizeHandle(handle)] = book
	}
	return out, nil
}

// GeneratePassword draws from four character classes and guarantees at least
// one of each.
func GeneratePassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}
	classes := []string{lowerClass, upperClass, digitClass, symbolClass}
	all := strings.Join(classes, "")

	chars := make([]byte, 0, length)
	for _, class := range classes {
		ch, err := randomChar(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, ch)
	}
	for len(chars) < length {
		ch, err := randomChar(all)
		if err != nil {
			return "", err
		}
		chars = append(chars, ch)
	}
	if err := shuffle(chars); err != nil {
		return "", err
	}
	return string(chars), nil
}

func randomChar(class string) (byte, error) {
	index, err := rand.Int(rand.Reader, big.NewInt(int64(len(class))))
	if err != nil {
		return 0, fmt.Errorf("identity: random char: %w", err)
	}
	return class[index.Int64()], nil
}

func shuffle(chars []byte) error {
	for i := len(chars) - 1; i > 0; i-- {
		index, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("identity: shuffle: %w", err)
		}
		j := index.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}
	return nil
}

var _ core.IdentityResolver = (*Resolver)(nil)
