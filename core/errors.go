package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput             = "FULFILLMENT_BAD_INPUT"
	ErrorSignatureInvalid     = "FULFILLMENT_SIGNATURE_INVALID"
	ErrorOrderExists          = "FULFILLMENT_ORDER_EXISTS"
	ErrorOrderNotFound        = "FULFILLMENT_ORDER_NOT_FOUND"
	ErrorUserExists           = "FULFILLMENT_USER_EXISTS"
	ErrorUserNotFound         = "FULFILLMENT_USER_NOT_FOUND"
	ErrorBookNotFound         = "FULFILLMENT_BOOK_NOT_FOUND"
	ErrorUnavailable          = "FULFILLMENT_UNAVAILABLE"
	ErrorInternal             = "FULFILLMENT_INTERNAL_ERROR"
	ErrorTokenRequired        = "TOKEN_REQUIRED"
	ErrorInvalidToken         = "INVALID_TOKEN"
	ErrorInvalidPayload       = "INVALID_PAYLOAD"
	ErrorInvalidTimestamp     = "INVALID_TIMESTAMP"
	ErrorBookIDsInvalid       = "BOOK_IDS_INVALID"
	ErrorEmailMissing         = "EMAIL_MISSING"
	ErrorResetTokenExpired    = "RESET_TOKEN_EXPIRED"
	ErrorEmailTokenMismatch   = "EMAIL_TOKEN_MISMATCH"
	ErrorPendingResetNotFound = "PENDING_RESET_NOT_FOUND"
)

// TokenErrorCodes is the closed set of token failures surfaced to users. Each
// maps to a translatable message key in the mail/template catalog rather than
// a raw error string.
var TokenErrorCodes = []string{
	ErrorTokenRequired,
	ErrorInvalidToken,
	ErrorInvalidPayload,
	ErrorInvalidTimestamp,
	ErrorBookIDsInvalid,
	ErrorEmailMissing,
	ErrorResetTokenExpired,
	ErrorEmailTokenMismatch,
}

var (
	ErrOrderExists          = errors.New("core: order already exists")
	ErrOrderNotFound        = errors.New("core: order not found")
	ErrUserExists           = errors.New("core: user already exists")
	ErrUserNotFound         = errors.New("core: user not found")
	ErrBookNotFound         = errors.New("core: book not found")
	ErrPendingResetNotFound = errors.New("core: pending reset not found")
	ErrTokenExpired         = errors.New("core: reset token expired")
	ErrEmailTokenMismatch   = errors.New("core: email does not match token payload")
	ErrBackendUnavailable   = errors.New("core: backend unavailable")
)

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrOrderExists):
		return newMappedError(err.Error(), goerrors.CategoryConflict, ErrorOrderExists)
	case errors.Is(err, ErrUserExists):
		return newMappedError(err.Error(), goerrors.CategoryConflict, ErrorUserExists)
	case errors.Is(err, ErrOrderNotFound):
		return newMappedError(err.Error(), goerrors.CategoryNotFound, ErrorOrderNotFound)
	case errors.Is(err, ErrUserNotFound):
		return newMappedError(err.Error(), goerrors.CategoryNotFound, ErrorUserNotFound)
	case errors.Is(err, ErrBookNotFound):
		return newMappedError(err.Error(), goerrors.CategoryNotFound, ErrorBookNotFound)
	case errors.Is(err, ErrPendingResetNotFound):
		return newMappedError(err.Error(), goerrors.CategoryNotFound, ErrorPendingResetNotFound)
	case errors.Is(err, ErrTokenExpired):
		return newMappedError(err.Error(), goerrors.CategoryAuth, ErrorResetTokenExpired)
	case errors.Is(err, ErrEmailTokenMismatch):
		return newMappedError(err.Error(), goerrors.CategoryAuth, ErrorEmailTokenMismatch)
	case errors.Is(err, ErrBackendUnavailable):
		return newMappedError(err.Error(), goerrors.CategoryExternal, ErrorUnavailable)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return newMappedError(err.Error(), goerrors.CategoryAuth, ErrorSignatureInvalid)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "database is locked"):
		return newMappedError(err.Error(), goerrors.CategoryExternal, ErrorUnavailable)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newMappedError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newMappedError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusFor(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorOrderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorSignatureInvalid
	case goerrors.CategoryConflict:
		return ErrorOrderExists
	case goerrors.CategoryExternal:
		return ErrorUnavailable
	default:
		return ErrorInternal
	}
}

func httpStatusFor(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error
