package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingSecret         = "MISSING_SECRET"
	TextCodeAuthenticationFailure = "AUTHENTICATION_FAILURE"
	TextCodeMissingCredential     = "MISSING_CREDENTIAL"
	TextCodeIdentityMismatch      = "IDENTITY_MISMATCH"
	TextCodeInvalidOpponent       = "INVALID_OPPONENT"
	TextCodeUnknownMatch          = "UNKNOWN_MATCH"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodePlayerNotFound        = "PLAYER_NOT_FOUND"
	TextCodeUsernameTaken         = "USERNAME_TAKEN"
	TextCodeNicknameTaken         = "NICKNAME_TAKEN"
	TextCodeTokenRecordNotFound   = "TOKEN_RECORD_NOT_FOUND"
	TextCodeTokenRecordExists     = "TOKEN_RECORD_EXISTS"
	TextCodeInvalidPayload        = "INVALID_PAYLOAD"
)

// ErrMissingSecret is a configuration error: the secret for a token kind
// was never provided. It is never reported as an authentication failure.
var ErrMissingSecret = errors.New("signing secret is not configured", errors.CategoryInternal).
	WithTextCode(TextCodeMissingSecret).
	WithCode(errors.CodeInternal)

// ErrAuthenticationFailure is the single failure every token check reports,
// whatever the underlying cause (bad signature, expiry, missing record,
// reuse).
var ErrAuthenticationFailure = errors.New("not allowed - invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailure).
	WithCode(errors.CodeForbidden)

// ErrMissingCredential is returned when a required token was not presented.
var ErrMissingCredential = errors.New("token missing", errors.CategoryAuth).
	WithTextCode(TextCodeMissingCredential).
	WithCode(errors.CodeUnauthorized)

// ErrIdentityMismatch is returned when access and session tokens belong to
// different players.
var ErrIdentityMismatch = errors.New("invalid access", errors.CategoryAuth).
	WithTextCode(TextCodeIdentityMismatch).
	WithCode(errors.CodeForbidden)

// ErrInvalidOpponent is returned when an invite names nobody online.
var ErrInvalidOpponent = errors.New("invalid opponent", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidOpponent).
	WithCode(errors.CodeBadRequest)

// ErrUnknownMatch is returned when answering an invite that is not pending
// for the caller.
var ErrUnknownMatch = errors.New("unknown or expired match", errors.CategoryNotFound).
	WithTextCode(TextCodeUnknownMatch).
	WithCode(errors.CodeNotFound)

var ErrInvalidCredentials = errors.New("username or password is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

var ErrPlayerNotFound = errors.New("player does not exist anymore", errors.CategoryNotFound).
	WithTextCode(TextCodePlayerNotFound).
	WithCode(errors.CodeNotFound)

var ErrUsernameTaken = errors.New("username is already taken", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(errors.CodeConflict)

// ErrNicknameTaken keeps nicknames unique, invites resolve players by nickname.
var ErrNicknameTaken = errors.New("nickname is already taken", errors.CategoryConflict).
	WithTextCode(TextCodeNicknameTaken).
	WithCode(errors.CodeConflict)

// ErrTokenRecordNotFound is returned by CredentialStore lookups.
var ErrTokenRecordNotFound = errors.New("token record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeTokenRecordNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenRecordExists is returned by CredentialStore inserts when the token
// is already stored.
var ErrTokenRecordExists = errors.New("token record already exists", errors.CategoryConflict).
	WithTextCode(TextCodeTokenRecordExists).
	WithCode(errors.CodeConflict)

var ErrInvalidPayload = errors.New("invalid payload", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPayload).
	WithCode(errors.CodeBadRequest)

// IsAuthenticationFailure will check for authentication failures
func IsAuthenticationFailure(err error) bool {
	return matches(err, ErrAuthenticationFailure)
}

// IsMissingSecret will check for configuration errors on secrets
func IsMissingSecret(err error) bool {
	return matches(err, ErrMissingSecret)
}

func IsMissingCredential(err error) bool {
	return matches(err, ErrMissingCredential)
}

func IsIdentityMismatch(err error) bool {
	return matches(err, ErrIdentityMismatch)
}

func IsInvalidOpponent(err error) bool {
	return matches(err, ErrInvalidOpponent)
}

func IsUnknownMatch(err error) bool {
	return matches(err, ErrUnknownMatch)
}

func IsPlayerNotFound(err error) bool {
	return matches(err, ErrPlayerNotFound)
}

func IsTokenRecordNotFound(err error) bool {
	return matches(err, ErrTokenRecordNotFound)
}

func IsTokenRecordExists(err error) bool {
	return matches(err, ErrTokenRecordExists)
}

func IsInvalidCredentials(err error) bool {
	return matches(err, ErrInvalidCredentials)
}

func IsUsernameTaken(err error) bool {
	return matches(err, ErrUsernameTaken)
}

func IsNicknameTaken(err error) bool {
	return matches(err, ErrNicknameTaken)
}

func IsInvalidPayload(err error) bool {
	return matches(err, ErrInvalidPayload)
}

// matches compares by identity first and falls back to the text code so
// clones carrying extra metadata still match their sentinel.
func matches(err error, sentinel *errors.Error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel) {
		return true
	}
	var richErr *errors.Error
	return errors.As(err, &richErr) && richErr.TextCode == sentinel.TextCode
}

// withMeta returns a copy of the sentinel carrying metadata, the sentinel
// itself is never mutated.
func withMeta(sentinel *errors.Error, meta map[string]any) error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(meta)
}
