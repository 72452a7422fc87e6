package realtime

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-arena-auth"
)

const localsHandshake = "arena_handshake"

// AccessTokenQueryParam is the query parameter carrying the access token
const AccessTokenQueryParam = "accessToken"

// UpgradeMiddleware rejects plain HTTP requests and captures the handshake
// credentials before the connection is upgraded. The access token comes
// from the query string or an Authorization bearer header, the session
// token from the session cookie.
func UpgradeMiddleware(cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		hs := Handshake{
			AccessToken:  c.Query(AccessTokenQueryParam),
			SessionToken: c.Cookies(cookieName),
		}
		if hs.AccessToken == "" {
			hs.AccessToken = auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		}

		c.Locals(localsHandshake, hs)
		return c.Next()
	}
}

// FiberHandler serves ns over gofiber websocket connections
func FiberHandler(ns *Namespace, logger auth.Logger) fiber.Handler {
	if logger == nil {
		logger = auth.NopLogger()
	}

	return websocket.New(func(conn *websocket.Conn) {
		hs, _ := conn.Locals(localsHandshake).(Handshake)
		if err := ns.Serve(context.Background(), conn, hs); err != nil {
			logger.Debug("websocket connection rejected", "namespace", ns.Name(), "error", err)
		}
	})
}

// Mount exposes each namespace under prefix/<name>
func Mount(app fiber.Router, prefix, cookieName string, logger auth.Logger, namespaces ...*Namespace) {
	for _, ns := range namespaces {
		app.Get(prefix+"/"+ns.Name(), UpgradeMiddleware(cookieName), FiberHandler(ns, logger))
	}
}
