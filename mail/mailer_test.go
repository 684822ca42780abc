package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-fulfillment/core"
)

type captureEnqueuer struct {
	messages []*job.ExecutionMessage
	err      error
}

func (c *captureEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if c.err != nil {
		return queue.EnqueueReceipt{}, c.err
	}
	c.messages = append(c.messages, msg)
	return queue.EnqueueReceipt{}, nil
}

func sampleNotification(locale string) core.PurchaseNotification {
	return core.PurchaseNotification{
		Email:    "Reader@Example.com",
		Name:     "Reader",
		Locale:   locale,
		AuthLink: "https://books.example.com/auth/login?token=sealed",
		Books: []core.BookLink{
			{BookID: 11, Title: "Sea Stories", ReaderURL: "https://books.example.com/read/11"},
		},
	}
}

func TestRenderPurchaseLocales(t *testing.T) {
	renderer := NewRenderer([]string{"en", "de", "fr", "es"})

	cases := []struct {
		locale  string
		subject string
		marker  string
	}{
		{"en", "Your books are ready", "Thank you for your purchase"},
		{"de", "Ihre Bücher sind bereit", "vielen Dank für Ihren Einkauf"},
		{"fr", "Vos livres sont prêts", "Merci pour votre achat"},
		{"es", "Sus libros están listos", "Gracias por su compra"},
	}
	for _, tc := range cases {
		subject, body, err := renderer.RenderPurchase(sampleNotification(tc.locale))
		if err != nil {
			t.Fatalf("RenderPurchase(%s) error = %v", tc.locale, err)
		}
		if subject != tc.subject {
			t.Fatalf("locale %s: unexpected subject %q", tc.locale, subject)
		}
		if !strings.Contains(body, tc.marker) {
			t.Fatalf("locale %s: body missing marker, got %q", tc.locale, body)
		}
		if !strings.Contains(body, "https://books.example.com/read/11") {
			t.Fatalf("locale %s: body missing reader link", tc.locale)
		}
		if !strings.Contains(body, "token=sealed") {
			t.Fatalf("locale %s: body missing auth link", tc.locale)
		}
	}
}

func TestRenderPurchaseFallsBackToEnglish(t *testing.T) {
	renderer := NewRenderer([]string{"en", "de"})

	subject, _, err := renderer.RenderPurchase(sampleNotification("pt-BR"))
	if err != nil {
		t.Fatalf("RenderPurchase() error = %v", err)
	}
	if subject != "Your books are ready" {
		t.Fatalf("expected English fallback, got %q", subject)
	}
}

func TestRenderPurchaseNameFallback(t *testing.T) {
	renderer := NewRenderer(nil)
	msg := sampleNotification("en")
	msg.Name = " "

	_, body, err := renderer.RenderPurchase(msg)
	if err != nil {
		t.Fatalf("RenderPurchase() error = %v", err)
	}
	if !strings.Contains(body, "Hello Reader@Example.com") {
		t.Fatalf("expected email fallback in greeting, got %q", body)
	}
}

func TestTokenErrorMessages(t *testing.T) {
	renderer := NewRenderer([]string{"en", "de"})

	if msg := renderer.TokenErrorMessage("de", core.ErrorResetTokenExpired); !strings.Contains(msg, "abgelaufen") {
		t.Fatalf("expected German expiry message, got %q", msg)
	}
	if msg := renderer.TokenErrorMessage("en", "SOMETHING_UNKNOWN"); !strings.Contains(msg, "no longer valid") {
		t.Fatalf("unknown codes must map to the invalid-token message, got %q", msg)
	}
	for _, code := range core.TokenErrorCodes {
		if renderer.TokenErrorMessage("en", code) == "" {
			t.Fatalf("missing English message for %s", code)
		}
	}
}

func TestQueueMailerEnqueues(t *testing.T) {
	enqueuer := &captureEnqueuer{}
	mailer, err := NewQueueMailer(enqueuer, NewRenderer([]string{"en", "de"}), "noreply@books.example.com", nil)
	if err != nil {
		t.Fatalf("NewQueueMailer() error = %v", err)
	}

	if err := mailer.EnqueuePurchaseNotification(context.Background(), sampleNotification("de")); err != nil {
		t.Fatalf("EnqueuePurchaseNotification() error = %v", err)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one queued message, got %d", len(enqueuer.messages))
	}

	queued := enqueuer.messages[0]
	if queued.JobID != SendJobID {
		t.Fatalf("unexpected job id %q", queued.JobID)
	}
	if queued.Parameters["to"] != "reader@example.com" {
		t.Fatalf("expected normalized recipient, got %v", queued.Parameters["to"])
	}
	if queued.Parameters["locale"] != "de" {
		t.Fatalf("expected German locale, got %v", queued.Parameters["locale"])
	}
	body, _ := queued.Parameters["body"].(string)
	if !strings.Contains(body, "token=sealed") {
		t.Fatal("queued body must carry the auth link")
	}
}

func TestQueueMailerPropagatesEnqueueFailure(t *testing.T) {
	enqueuer := &captureEnqueuer{err: errors.New("queue full")}
	mailer, err := NewQueueMailer(enqueuer, nil, "noreply@books.example.com", nil)
	if err != nil {
		t.Fatalf("NewQueueMailer() error = %v", err)
	}

	if err := mailer.EnqueuePurchaseNotification(context.Background(), sampleNotification("en")); err == nil {
		t.Fatal("expected enqueue failure to surface")
	}
}

func TestQueueMailerRequiresRecipient(t *testing.T) {
	mailer, err := NewQueueMailer(&captureEnqueuer{}, nil, "noreply@books.example.com", nil)
	if err != nil {
		t.Fatalf("NewQueueMailer() error = %v", err)
	}
	msg := sampleNotification("en")
	msg.Email = "  "
	if err := mailer.EnqueuePurchaseNotification(context.Background(), msg); err == nil {
		t.Fatal("expected missing recipient error")
	}
}
