package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// LocalsPayloadKey is where AccessGuard stores the access token payload
const LocalsPayloadKey = "arena_payload"

// SessionCookie writes and clears the session token cookie
type SessionCookie struct {
	Name     string
	MaxAge   time.Duration
	Secure   bool
	SameSite string
}

// NewSessionCookie follows the cross-site cookie contract: http only,
// secure, SameSite=None, max-age equal to the SESSION lifetime.
func NewSessionCookie(cfg Config) SessionCookie {
	return SessionCookie{
		Name:     cfg.GetSessionCookieName(),
		MaxAge:   SessionTokenTTL,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	}
}

func (s SessionCookie) Set(ctx router.Context, token string) {
	ctx.Cookie(&router.Cookie{
		Name:     s.Name,
		Value:    token,
		MaxAge:   int(s.MaxAge.Seconds()),
		Expires:  time.Now().Add(s.MaxAge),
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

func (s SessionCookie) Clear(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     s.Name,
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

func (s SessionCookie) Get(ctx router.Context) string {
	return ctx.Cookies(s.Name)
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// AccessGuard requires a valid ACCESS bearer token and stores its payload in
// the request locals and the request context.
func AccessGuard(tokens TokenValidator) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token := BearerToken(ctx.GetString(fiber.HeaderAuthorization, ""))
			if token == "" {
				return withMeta(ErrMissingCredential, map[string]any{"credential": "access"})
			}

			payload, err := tokens.Validate(ctx.Context(), token, TokenKindAccess)
			if err != nil {
				return err
			}

			ctx.Locals(LocalsPayloadKey, payload)
			ctx.SetContext(WithPayloadContext(ctx.Context(), payload))
			return next(ctx)
		}
	}
}

// PayloadFromLocals returns the payload stored by AccessGuard
func PayloadFromLocals(ctx router.Context) (*TokenPayload, bool) {
	payload, ok := ctx.Locals(LocalsPayloadKey).(*TokenPayload)
	return payload, ok && payload != nil
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message  string         `json:"message"`
	TextCode string         `json:"text_code,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewErrorHandler maps errors to status codes. Internal errors are logged
// and rendered without detail.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: ErrorBody{Message: fiberErr.Message}})
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := statusFor(richErr)

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"path", c.Path(),
				"error", err,
				"category", richErr.Category,
			)
			return c.Status(status).JSON(ErrorResponse{Error: ErrorBody{
				Message:  "internal server error",
				TextCode: richErr.TextCode,
			}})
		}

		logger.Debug("request rejected",
			"path", c.Path(),
			"error", richErr.Message,
			"text_code", richErr.TextCode,
		)

		body := ErrorBody{Message: richErr.Message, TextCode: richErr.TextCode}
		if richErr.Category == errors.CategoryValidation {
			body.Metadata = richErr.Metadata
		}
		return c.Status(status).JSON(ErrorResponse{Error: body})
	}
}

func statusFor(err *errors.Error) int {
	if err.Code != 0 {
		return err.Code
	}
	switch err.Category {
	case errors.CategoryBadInput, errors.CategoryValidation:
		return fiber.StatusBadRequest
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
