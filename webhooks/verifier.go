package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-fulfillment/core"
)

const (
	// HeaderSignature carries the base64 HMAC-SHA256 digest of the raw body.
	HeaderSignature = "X-Storefront-Hmac-Sha256"
	// HeaderTestBypass marks a test delivery. The bypass only applies when
	// this marker is present AND the signature header is empty, and only on a
	// verifier explicitly built with AllowTestBypass.
	HeaderTestBypass = "X-Storefront-Test"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HeaderHMACVerifier validates webhook authenticity: HMAC-SHA256 over the raw
// request body with the shared secret, compared in constant time against the
// header digest.
type HeaderHMACVerifier struct {
	Header          string
	Secret          string
	AllowTestBypass bool
}

func NewVerifier(secret string) HeaderHMACVerifier {
	return HeaderHMACVerifier{
		Header: HeaderSignature,
		Secret: strings.TrimSpace(secret),
	}
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(v.Header)
	if header == "" {
		header = HeaderSignature
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}

	signature := strings.TrimSpace(headerValue(req.Headers, header))

	if v.AllowTestBypass && signature == "" {
		if marker := strings.TrimSpace(headerValue(req.Headers, HeaderTestBypass)); marker != "" {
			return nil
		}
	}
	if signature == "" {
		return fmt.Errorf("webhooks: %s signature header is required", header)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhooks: decode base64 signature: %w", err)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
