package auth

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// RegisterRequest payload
type RegisterRequest struct {
	Nickname string `json:"nickname" form:"nickname"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Nickname, validation.Required, validation.Length(2, 20)),
		validation.Field(&r.Username, validation.Required, validation.Length(4, 20)),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 20),
			validation.By(StrongPassword),
		),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// PasswordResetRequest asks for a RESET token
type PasswordResetRequest struct {
	Username string `json:"username" form:"username"`
}

// Validate will run validation rules
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(4, 20)),
	)
}

// PasswordResetConfirmRequest applies a new password with a RESET token
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r PasswordResetConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 20),
			validation.By(StrongPassword),
		),
	)
}

// StrongPassword requires a lowercase letter, an uppercase letter, a digit
// and a symbol.
func StrongPassword(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if !lower || !upper || !digit || !symbol {
		return errors.New("password is not strong enough")
	}
	return nil
}

// ValidationError wraps ozzo errors into ErrInvalidPayload keeping the
// per field messages as metadata.
func ValidationError(err error) error {
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else {
		fields["_"] = strings.TrimSpace(err.Error())
	}

	return withMeta(ErrInvalidPayload, map[string]any{"fields": fields})
}
