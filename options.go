package auth

import (
	"strings"
)

const DefaultSessionCookieName = "sessionToken"

// Options is the default Config implementation, loadable with koanf
type Options struct {
	AccessTokenSecret  string `koanf:"access_token_secret" json:"-"`
	SessionTokenSecret string `koanf:"session_token_secret" json:"-"`
	ResetTokenSecret   string `koanf:"reset_token_secret" json:"-"`
	Issuer             string `koanf:"issuer" json:"issuer"`
	SessionCookieName  string `koanf:"session_cookie_name" json:"session_cookie_name"`
}

func (o Options) GetAccessTokenSecret() string {
	return o.AccessTokenSecret
}

func (o Options) GetSessionTokenSecret() string {
	return o.SessionTokenSecret
}

func (o Options) GetResetTokenSecret() string {
	return o.ResetTokenSecret
}

func (o Options) GetIssuer() string {
	return o.Issuer
}

func (o Options) GetSessionCookieName() string {
	if o.SessionCookieName == "" {
		return DefaultSessionCookieName
	}
	return o.SessionCookieName
}

// ValidateConfig fails with ErrMissingSecret when any token kind has no
// secret. Call it at startup.
func ValidateConfig(cfg Config) error {
	var missing []string
	for _, kind := range []TokenKind{TokenKindAccess, TokenKindSession, TokenKindReset} {
		if strings.TrimSpace(tokenPolicies[kind].secret(cfg)) == "" {
			missing = append(missing, kind.String())
		}
	}
	if len(missing) > 0 {
		return withMeta(ErrMissingSecret, map[string]any{"kinds": missing})
	}
	return nil
}
