package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// linkPayload is the wire form of AuthLinkPayload. The field set is closed:
// the encoder emits nothing else and the decoder drops anything else.
type linkPayload struct {
	Email        string          `json:"email"`
	TempPassword json.RawMessage `json:"temp_password,omitempty"`
	BookIDs      []json.Number   `json:"book_ids,omitempty"`
	IssuedAt     string          `json:"issued_at"`
}

type LinkPayloadCodec struct {
	// ResetTTL bounds the lifetime of reset-type payloads. Provisioning
	// payloads carry a temp password and are not time-limited.
	ResetTTL time.Duration
	Now      func() time.Time
}

func NewLinkPayloadCodec(resetTTL time.Duration) LinkPayloadCodec {
	if resetTTL <= 0 {
		resetTTL = 24 * time.Hour
	}
	return LinkPayloadCodec{
		ResetTTL: resetTTL,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (c LinkPayloadCodec) Encode(payload AuthLinkPayload) ([]byte, error) {
	email := NormalizeEmail(payload.Email)
	if email == "" {
		return nil, payloadError(ErrorEmailMissing, "core: payload email is required")
	}
	issuedAt := payload.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}
	wire := linkPayload{
		Email:    email,
		IssuedAt: issuedAt.UTC().Format(time.RFC3339),
	}
	if payload.TempPassword != nil {
		encodedPassword, err := json.Marshal(*payload.TempPassword)
		if err != nil {
			return nil, payloadError(ErrorInvalidPayload, "core: encode temp password: "+err.Error())
		}
		wire.TempPassword = encodedPassword
	}
	for _, id := range payload.BookIDs {
		wire.BookIDs = append(wire.BookIDs, json.Number(strconv.FormatInt(id, 10)))
	}
	encoded, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("core: encode link payload: %w", err)
	}
	return encoded, nil
}

// Decode validates in a fixed order: parseable, email present, temp password
// string-or-absent, issued_at a valid timestamp, book ids coercible to
// integers, and finally the reset TTL when no temp password is embedded.
func (c LinkPayloadCodec) Decode(plaintext []byte) (AuthLinkPayload, error) {
	if len(plaintext) == 0 {
		return AuthLinkPayload{}, payloadError(ErrorInvalidPayload, "core: link payload is empty")
	}
	wire := linkPayload{}
	if err := json.Unmarshal(plaintext, &wire); err != nil {
		return AuthLinkPayload{}, payloadError(ErrorInvalidPayload, "core: decode link payload: "+err.Error())
	}

	email := NormalizeEmail(wire.Email)
	if email == "" {
		return AuthLinkPayload{}, payloadError(ErrorEmailMissing, "core: payload email is required")
	}

	var tempPassword *string
	if len(wire.TempPassword) > 0 && string(wire.TempPassword) != "null" {
		decodedPassword := ""
		if err := json.Unmarshal(wire.TempPassword, &decodedPassword); err != nil {
			return AuthLinkPayload{}, payloadError(ErrorInvalidPayload, "core: temp password must be a string")
		}
		tempPassword = &decodedPassword
	}

	issuedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(wire.IssuedAt))
	if err != nil {
		return AuthLinkPayload{}, payloadError(ErrorInvalidTimestamp, "core: payload issued_at is not a valid timestamp")
	}

	bookIDs := make([]int64, 0, len(wire.BookIDs))
	for _, raw := range wire.BookIDs {
		id, convErr := raw.Int64()
		if convErr != nil {
			return AuthLinkPayload{}, payloadError(ErrorBookIDsInvalid, "core: payload book ids must be integers")
		}
		bookIDs = append(bookIDs, id)
	}

	payload := AuthLinkPayload{
		Email:        email,
		TempPassword: tempPassword,
		BookIDs:      bookIDs,
		IssuedAt:     issuedAt.UTC(),
	}

	if payload.IsReset() {
		if c.now().Sub(payload.IssuedAt) > c.resetTTL() {
			return AuthLinkPayload{}, goerrors.Wrap(ErrTokenExpired, goerrors.CategoryAuth, "core: reset link expired").
				WithTextCode(ErrorResetTokenExpired)
		}
	}
	return payload, nil
}

func (c LinkPayloadCodec) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c LinkPayloadCodec) resetTTL() time.Duration {
	if c.ResetTTL > 0 {
		return c.ResetTTL
	}
	return 24 * time.Hour
}

func payloadError(textCode string, message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(textCode)
}
