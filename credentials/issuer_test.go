package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-fulfillment/core"
	"github.com/goliatone/go-fulfillment/security"
)

type memoryTokens struct {
	rows map[string]core.ResetToken
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{rows: map[string]core.ResetToken{}}
}

func tokenKey(email string, tokenType core.TokenType) string {
	return email + "|" + string(tokenType)
}

func (m *memoryTokens) Upsert(_ context.Context, token core.ResetToken) error {
	m.rows[tokenKey(token.Email, token.Type)] = token
	return nil
}

func (m *memoryTokens) Get(_ context.Context, email string, tokenType core.TokenType) (core.ResetToken, error) {
	row, ok := m.rows[tokenKey(email, tokenType)]
	if !ok {
		return core.ResetToken{}, core.ErrPendingResetNotFound
	}
	return row, nil
}

func (m *memoryTokens) DeleteForEmail(_ context.Context, email string) error {
	delete(m.rows, tokenKey(email, core.TokenTypeInitial))
	delete(m.rows, tokenKey(email, core.TokenTypeReset))
	return nil
}

func (m *memoryTokens) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	pruned := int64(0)
	for key, row := range m.rows {
		if row.CreatedAt.Before(cutoff) {
			delete(m.rows, key)
			pruned++
		}
	}
	return pruned, nil
}

type stubAccounts struct {
	known    map[string]core.UserInfo
	setCalls map[string]string
}

func newStubAccounts(emails ...string) *stubAccounts {
	s := &stubAccounts{known: map[string]core.UserInfo{}, setCalls: map[string]string{}}
	for i, email := range emails {
		s.known[email] = core.UserInfo{ID: int64(i + 1), Email: email}
	}
	return s
}

func (s *stubAccounts) CreateUser(_ context.Context, input core.CreateUserInput) (core.UserInfo, error) {
	return core.UserInfo{}, core.ErrUserExists
}

func (s *stubAccounts) GetByEmails(_ context.Context, emails []string) (map[string]core.UserInfo, error) {
	out := map[string]core.UserInfo{}
	for _, email := range emails {
		if user, ok := s.known[email]; ok {
			out[email] = user
		}
	}
	return out, nil
}

func (s *stubAccounts) GetByID(_ context.Context, id int64) (core.UserInfo, error) {
	return core.UserInfo{}, core.ErrUserNotFound
}

func (s *stubAccounts) SetPasswordHash(_ context.Context, email string, hash string) error {
	if _, ok := s.known[email]; !ok {
		return core.ErrUserNotFound
	}
	s.setCalls[email] = hash
	return nil
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestIssuer(t *testing.T, tokens core.ResetTokenStore, accounts core.AccountStore, clock *fakeClock) *Issuer {
	t.Helper()
	cipher, err := security.NewLinkCipher("unit-test-deployment-secret")
	if err != nil {
		t.Fatalf("NewLinkCipher() error = %v", err)
	}
	issuer, err := NewIssuer(tokens, accounts, cipher, Config{
		ResetTTL:   24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

func textCodeOf(t *testing.T, err error) string {
	t.Helper()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %v", err)
	}
	return rich.TextCode
}

func TestIssueInitialTokenRoundTrip(t *testing.T) {
	tokens := newMemoryTokens()
	clock := &fakeClock{current: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, tokens, newStubAccounts(), clock)

	token, err := issuer.IssueInitialToken(context.Background(), " Reader@Example.com ", "Temp-Pass-1", []int64{11, 42})
	if err != nil {
		t.Fatalf("IssueInitialToken() error = %v", err)
	}
	if strings.Contains(token, "Temp-Pass-1") {
		t.Fatal("token leaks the temp password")
	}

	row, err := tokens.Get(context.Background(), "reader@example.com", core.TokenTypeInitial)
	if err != nil {
		t.Fatalf("expected stored initial row: %v", err)
	}
	if row.PasswordHash == "" || row.PasswordHash == "Temp-Pass-1" {
		t.Fatalf("expected hashed temp password, got %q", row.PasswordHash)
	}

	payload, err := issuer.DecodePayload(context.Background(), token)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if payload.Email != "reader@example.com" {
		t.Fatalf("unexpected payload email %q", payload.Email)
	}
	if payload.TempPassword == nil || *payload.TempPassword != "Temp-Pass-1" {
		t.Fatalf("expected temp password in payload, got %+v", payload.TempPassword)
	}
	if len(payload.BookIDs) != 2 || payload.BookIDs[0] != 11 || payload.BookIDs[1] != 42 {
		t.Fatalf("unexpected book ids %v", payload.BookIDs)
	}
	if payload.IsReset() {
		t.Fatal("initial payload must not be reset-type")
	}
}

func TestIssueResetTokenRequiresAccount(t *testing.T) {
	clock := &fakeClock{current: time.Now().UTC()}
	issuer := newTestIssuer(t, newMemoryTokens(), newStubAccounts(), clock)

	_, err := issuer.IssueResetToken(context.Background(), "ghost@example.com", nil)
	if !errors.Is(err, core.ErrPendingResetNotFound) {
		t.Fatalf("expected ErrPendingResetNotFound, got %v", err)
	}
}

func TestResetTokenTTLBoundary(t *testing.T) {
	tokens := newMemoryTokens()
	clock := &fakeClock{current: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, tokens, newStubAccounts("reader@example.com"), clock)

	token, err := issuer.IssueResetToken(context.Background(), "reader@example.com", []int64{7})
	if err != nil {
		t.Fatalf("IssueResetToken() error = %v", err)
	}

	clock.Advance(23*time.Hour + 59*time.Minute)
	if _, err := issuer.DecodePayload(context.Background(), token); err != nil {
		t.Fatalf("token should still validate inside the window: %v", err)
	}

	clock.Advance(2 * time.Minute)
	_, err = issuer.DecodePayload(context.Background(), token)
	if !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if code := textCodeOf(t, err); code != core.ErrorResetTokenExpired {
		t.Fatalf("expected %s, got %s", core.ErrorResetTokenExpired, code)
	}
}

func TestDecodePayloadRejectsMissingAndGarbage(t *testing.T) {
	clock := &fakeClock{current: time.Now().UTC()}
	issuer := newTestIssuer(t, newMemoryTokens(), newStubAccounts(), clock)

	_, err := issuer.DecodePayload(context.Background(), "   ")
	if code := textCodeOf(t, err); code != core.ErrorTokenRequired {
		t.Fatalf("expected %s, got %s", core.ErrorTokenRequired, code)
	}

	_, err = issuer.DecodePayload(context.Background(), "not-a-sealed-token")
	if code := textCodeOf(t, err); code != core.ErrorInvalidToken {
		t.Fatalf("expected %s, got %s", core.ErrorInvalidToken, code)
	}
}

func TestResolvePendingResetEmailMismatch(t *testing.T) {
	tokens := newMemoryTokens()
	clock := &fakeClock{current: time.Now().UTC()}
	issuer := newTestIssuer(t, tokens, newStubAccounts("reader@example.com"), clock)

	token, err := issuer.IssueResetToken(context.Background(), "reader@example.com", nil)
	if err != nil {
		t.Fatalf("IssueResetToken() error = %v", err)
	}

	_, err = issuer.ResolvePendingReset(context.Background(), "other@example.com", token)
	if !errors.Is(err, core.ErrEmailTokenMismatch) {
		t.Fatalf("expected ErrEmailTokenMismatch, got %v", err)
	}
}

func TestResolvePendingResetMissingRow(t *testing.T) {
	tokens := newMemoryTokens()
	clock := &fakeClock{current: time.Now().UTC()}
	issuer := newTestIssuer(t, tokens, newStubAccounts("reader@example.com"), clock)

	token, err := issuer.IssueResetToken(context.Background(), "reader@example.com", nil)
	if err != nil {
		t.Fatalf("IssueResetToken() error = %v", err)
	}
	if err := tokens.DeleteForEmail(context.Background(), "reader@example.com"); err != nil {
		t.Fatalf("DeleteForEmail() error = %v", err)
	}

	_, err = issuer.ResolvePendingReset(context.Background(), "reader@example.com", token)
	if !errors.Is(err, core.ErrPendingResetNotFound) {
		t.Fatalf("expected ErrPendingResetNotFound, got %v", err)
	}
}

func TestResolvePendingResetStaleInitialCredential(t *testing.T) {
	tokens := newMemoryTokens()
	clock := &fakeClock{current: time.Now().UTC()}
	issuer := newTestIssuer(t, tokens, newStubAccounts(), clock)

	first, err := issuer.IssueInitialToken(context.Background(), "reader@example.com", "first-password", nil)
	if err != nil {
		t.Fatalf("IssueInitialToken() error = %v", err)
	}
	if _, err := issuer.IssueInitialToken(context.Background(), "reader@example.com", "second-password", nil); err != nil {
		t.Fatalf("reissue error = %v", err)
	}

	// The reissue overwrote the stored hash, so the first link is dead.
	_, err = issuer.ResolvePendingReset(context.Background(), "reader@example.com", first)
	if code := textCodeOf(t, err); code != core.ErrorInvalidToken {
		t.Fatalf("expected %s, got %s", core.ErrorInvalidToken, code)
	}
}

func TestCompletePasswordChange(t *testing.T) {
	tokens := newMemoryTokens()
	accounts := newStubAccounts("reader@example.com")
	clock := &fakeClock{current: time.Now().UTC()}
	issuer := newTestIssuer(t, tokens, accounts, clock)

	if _, err := issuer.IssueResetToken(context.Background(), "reader@example.com", nil); err != nil {
		t.Fatalf("IssueResetToken() error = %v", err)
	}

	if err := issuer.CompletePasswordChange(context.Background(), "reader@example.com", "brand-new-password"); err != nil {
		t.Fatalf("CompletePasswordChange() error = %v", err)
	}

	hash, ok := accounts.setCalls["reader@example.com"]
	if !ok {
		t.Fatal("expected password hash to be stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("brand-new-password")); err != nil {
		t.Fatalf("stored hash does not match new password: %v", err)
	}
	if _, err := tokens.Get(context.Background(), "reader@example.com", core.TokenTypeReset); !errors.Is(err, core.ErrPendingResetNotFound) {
		t.Fatalf("expected pending rows retired, got %v", err)
	}
}

func TestPrunerRun(t *testing.T) {
	tokens := newMemoryTokens()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tokens.rows[tokenKey("old@example.com", core.TokenTypeReset)] = core.ResetToken{
		Email:     "old@example.com",
		Type:      core.TokenTypeReset,
		CreatedAt: now.Add(-31 * 24 * time.Hour),
	}
	tokens.rows[tokenKey("fresh@example.com", core.TokenTypeReset)] = core.ResetToken{
		Email:     "fresh@example.com",
		Type:      core.TokenTypeReset,
		CreatedAt: now.Add(-time.Hour),
	}

	pruner, err := NewPruner(tokens, 30*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPruner() error = %v", err)
	}
	pruner.now = func() time.Time { return now }

	pruned, err := pruner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
	if len(tokens.rows) != 1 {
		t.Fatalf("expected 1 remaining row, got %d", len(tokens.rows))
	}
}
