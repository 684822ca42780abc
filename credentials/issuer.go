package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fulfillment/core"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	ResetTTL   time.Duration
	BcryptCost int
}

// Issuer mints and resolves single-use encrypted login tokens. One pending
// token per (email, type); re-issuing overwrites the prior row, which
// invalidates the earlier link's stored credential.
type Issuer struct {
	tokens   core.ResetTokenStore
	accounts core.AccountStore
	cipher   core.SecretProvider
	codec    core.LinkPayloadCodec
	cost     int
	now      func() time.Time
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewIssuer(tokens core.ResetTokenStore, accounts core.AccountStore, cipher core.SecretProvider, cfg Config, opts ...Option) (*Issuer, error) {
	if tokens == nil {
		return nil, fmt.Errorf("credentials: reset token store is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("credentials: account store is required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("credentials: secret provider is required")
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	issuer := &Issuer{
		tokens:   tokens,
		accounts: accounts,
		cipher:   cipher,
		codec:    core.NewLinkPayloadCodec(cfg.ResetTTL),
		cost:     cfg.BcryptCost,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	issuer.codec.Now = issuer.now
	return issuer, nil
}

// IssueInitialToken records a provisioning credential for a freshly created
// account and returns the sealed login token. The temp password travels in
// the encrypted payload and is stored only as a bcrypt hash.
func (i *Issuer) IssueInitialToken(ctx context.Context, email string, tempPassword string, bookIDs []int64) (string, error) {
	if i == nil {
		return "", fmt.Errorf("credentials: issuer is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return "", tokenError(core.ErrorEmailMissing, goerrors.CategoryBadInput, "credentials: email is required")
	}
	if tempPassword == "" {
		return "", tokenError(core.ErrorBadInput, goerrors.CategoryBadInput, "credentials: temp password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), i.cost)
	if err != nil {
		return "", fmt.Errorf("credentials: hash temp password: %w", err)
	}
	issuedAt := i.now()
	if err := i.tokens.Upsert(ctx, core.ResetToken{
		Email:        email,
		Type:         core.TokenTypeInitial,
		PasswordHash: string(hash),
		CreatedAt:    issuedAt,
		LastSentAt:   issuedAt,
	}); err != nil {
		return "", err
	}

	return i.seal(ctx, core.AuthLinkPayload{
		Email:        email,
		TempPassword: &tempPassword,
		BookIDs:      bookIDs,
		IssuedAt:     issuedAt,
	})
}

// IssueResetToken records a password-reset credential for an existing
// account. Reset rows never carry a password hash; the sealed payload's
// issued_at bounds its 24 hour lifetime.
func (i *Issuer) IssueResetToken(ctx context.Context, email string, bookIDs []int64) (string, error) {
	if i == nil {
		return "", fmt.Errorf("credentials: issuer is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return "", tokenError(core.ErrorEmailMissing, goerrors.CategoryBadInput, "credentials: email is required")
	}

	found, err := i.accounts.GetByEmails(ctx, []string{email})
	if err != nil {
		return "", err
	}
	if _, exists := found[email]; !exists {
		return "", goerrors.Wrap(core.ErrPendingResetNotFound, goerrors.CategoryNotFound, "credentials: no account for reset").
			WithTextCode(core.ErrorPendingResetNotFound)
	}

	issuedAt := i.now()
	if err := i.tokens.Upsert(ctx, core.ResetToken{
		Email:      email,
		Type:       core.TokenTypeReset,
		CreatedAt:  issuedAt,
		LastSentAt: issuedAt,
	}); err != nil {
		return "", err
	}

	return i.seal(ctx, core.AuthLinkPayload{
		Email:    email,
		BookIDs:  bookIDs,
		IssuedAt: issuedAt,
	})
}

// DecodePayload unseals and validates a login token without consuming it.
func (i *Issuer) DecodePayload(ctx context.Context, token string) (core.AuthLinkPayload, error) {
	if i == nil {
		return core.AuthLinkPayload{}, fmt.Errorf("credentials: issuer is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return core.AuthLinkPayload{}, tokenError(core.ErrorTokenRequired, goerrors.CategoryBadInput, "credentials: token is required")
	}

	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tokens minted before the URL-safe wrapping circulate as the raw
		// envelope string.
		sealed = []byte(token)
	}
	plaintext, err := i.cipher.Decrypt(ctx, sealed)
	if err != nil {
		return core.AuthLinkPayload{}, tokenError(core.ErrorInvalidToken, goerrors.CategoryAuth, "credentials: token cannot be decrypted")
	}
	return i.codec.Decode(plaintext)
}

// ResolvePendingReset validates a token against the pending row for email.
// The requesting email must match the payload before any storage lookup so a
// valid token cannot probe other accounts.
func (i *Issuer) ResolvePendingReset(ctx context.Context, email string, token string) (core.AuthLinkPayload, error) {
	if i == nil {
		return core.AuthLinkPayload{}, fmt.Errorf("credentials: issuer is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return core.AuthLinkPayload{}, tokenError(core.ErrorEmailMissing, goerrors.CategoryBadInput, "credentials: email is required")
	}

	payload, err := i.DecodePayload(ctx, token)
	if err != nil {
		return core.AuthLinkPayload{}, err
	}
	if payload.Email != email {
		return core.AuthLinkPayload{}, goerrors.Wrap(core.ErrEmailTokenMismatch, goerrors.CategoryAuth, "credentials: email does not match token").
			WithTextCode(core.ErrorEmailTokenMismatch)
	}

	tokenType := core.TokenTypeReset
	if !payload.IsReset() {
		tokenType = core.TokenTypeInitial
	}
	pending, err := i.tokens.Get(ctx, email, tokenType)
	if err != nil {
		if errors.Is(err, core.ErrPendingResetNotFound) {
			return core.AuthLinkPayload{}, goerrors.Wrap(err, goerrors.CategoryNotFound, "credentials: no pending credential").
				WithTextCode(core.ErrorPendingResetNotFound)
		}
		return core.AuthLinkPayload{}, err
	}

	if tokenType == core.TokenTypeInitial {
		if payload.TempPassword == nil || pending.PasswordHash == "" {
			return core.AuthLinkPayload{}, tokenError(core.ErrorInvalidToken, goerrors.CategoryAuth, "credentials: provisioning credential is incomplete")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(pending.PasswordHash), []byte(*payload.TempPassword)); err != nil {
			return core.AuthLinkPayload{}, tokenError(core.ErrorInvalidToken, goerrors.CategoryAuth, "credentials: credential does not match pending record")
		}
	}
	return payload, nil
}

// CompletePasswordChange sets the account's real password and retires every
// pending credential for the email, both the initial and the reset row.
func (i *Issuer) CompletePasswordChange(ctx context.Context, email string, newPassword string) error {
	if i == nil {
		return fmt.Errorf("credentials: issuer is not configured")
	}
	email = core.NormalizeEmail(email)
	if email == "" {
		return tokenError(core.ErrorEmailMissing, goerrors.CategoryBadInput, "credentials: email is required")
	}
	if len(newPassword) < 8 {
		return tokenError(core.ErrorBadInput, goerrors.CategoryBadInput, "credentials: password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), i.cost)
	if err != nil {
		return fmt.Errorf("credentials: hash password: %w", err)
	}
	if err := i.accounts.SetPasswordHash(ctx, email, string(hash)); err != nil {
		return err
	}
	return i.tokens.DeleteForEmail(ctx, email)
}

func (i *Issuer) seal(ctx context.Context, payload core.AuthLinkPayload) (string, error) {
	plaintext, err := i.codec.Encode(payload)
	if err != nil {
		return "", err
	}
	sealed, err := i.cipher.Encrypt(ctx, plaintext)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func tokenError(textCode string, category goerrors.Category, message string) error {
	return goerrors.New(message, category).WithTextCode(textCode)
}

var _ core.CredentialIssuer = (*Issuer)(nil)
