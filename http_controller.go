package auth

import (
	"net/http"

	"github.com/goliatone/go-router"
)

type PlayerControllerRoutes struct {
	Register             string
	Login                string
	Refresh              string
	Logout               string
	LogoutAll            string
	PasswordReset        string
	PasswordResetConfirm string
	LobbyMessages        string
}

type PlayerController struct {
	Logger        Logger
	Players       *PlayerService
	Tokens        *TokenService
	Messages      MessageStore
	ResetInit     *InitializePasswordResetHandler
	ResetFinalize *FinalizePasswordResetHandler
	Cookie        SessionCookie
	Routes        *PlayerControllerRoutes
}

type PlayerControllerOption func(*PlayerController) *PlayerController

func WithControllerLogger(logger Logger) PlayerControllerOption {
	return func(c *PlayerController) *PlayerController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithMessageStore(store MessageStore) PlayerControllerOption {
	return func(c *PlayerController) *PlayerController {
		c.Messages = store
		return c
	}
}

func WithPasswordReset(init *InitializePasswordResetHandler, finalize *FinalizePasswordResetHandler) PlayerControllerOption {
	return func(c *PlayerController) *PlayerController {
		c.ResetInit = init
		c.ResetFinalize = finalize
		return c
	}
}

func WithSessionCookie(cookie SessionCookie) PlayerControllerOption {
	return func(c *PlayerController) *PlayerController {
		c.Cookie = cookie
		return c
	}
}

func NewPlayerController(cfg Config, players *PlayerService, tokens *TokenService, opts ...PlayerControllerOption) *PlayerController {
	c := &PlayerController{
		Logger:  defLogger{},
		Players: players,
		Tokens:  tokens,
		Cookie:  NewSessionCookie(cfg),
		Routes: &PlayerControllerRoutes{
			Register:             "/player/register",
			Login:                "/player/login",
			Refresh:              "/player/refresh",
			Logout:               "/player/logout",
			LogoutAll:            "/player/logout-all",
			PasswordReset:        "/player/password-reset",
			PasswordResetConfirm: "/player/password-reset/confirm",
			LobbyMessages:        "/lobby/messages",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Players == nil || c.Tokens == nil {
		panic("Missing PlayerService or TokenService in player controller...")
	}

	return c
}

// RegisterPlayerRoutes mounts the controller on app
func RegisterPlayerRoutes[T any](app router.Router[T], c *PlayerController) {
	app.Post(c.Routes.Register, c.Register).
		SetName("player.register")
	app.Post(c.Routes.Login, c.Login).
		SetName("player.login")
	app.Get(c.Routes.Refresh, c.Refresh).
		SetName("player.refresh")
	app.Get(c.Routes.Logout, c.Logout).
		SetName("player.logout")
	app.Post(c.Routes.LogoutAll, c.LogoutAll).
		SetName("player.logout-all")

	if c.ResetInit != nil && c.ResetFinalize != nil {
		app.Post(c.Routes.PasswordReset, c.PasswordResetRequest).
			SetName("player.pwd-reset")
		app.Post(c.Routes.PasswordResetConfirm, c.PasswordResetConfirm).
			SetName("player.pwd-reset-confirm")
	}

	if c.Messages != nil {
		app.Get(c.Routes.LobbyMessages, c.LobbyMessages, AccessGuard(c.Tokens)).
			SetName("lobby.messages")
	}
}

// PlayerResponse is the body of register, login and refresh. The session
// token only travels in the cookie.
type PlayerResponse struct {
	Player      PlayerView `json:"player"`
	AccessToken string     `json:"accessToken"`
}

type PlayerView struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Username string `json:"username,omitempty"`
}

func (a *PlayerController) respondWithSession(ctx router.Context, status int, res *AuthResult) error {
	a.Cookie.Set(ctx, res.Tokens.SessionToken)
	return ctx.JSON(status, PlayerResponse{
		Player: PlayerView{
			ID:       res.Player.ID.String(),
			Nickname: res.Player.Nickname,
			Username: res.Player.Username,
		},
		AccessToken: res.Tokens.AccessToken,
	})
}

func (a *PlayerController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return ValidationError(err)
	}

	res, err := a.Players.Register(ctx.Context(), *payload)
	if err != nil {
		return err
	}

	a.Logger.Info("player registered", "player_id", res.Player.ID)
	return a.respondWithSession(ctx, http.StatusCreated, res)
}

func (a *PlayerController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return ValidationError(err)
	}

	res, err := a.Players.Login(ctx.Context(), *payload)
	if err != nil {
		return err
	}

	return a.respondWithSession(ctx, http.StatusOK, res)
}

func (a *PlayerController) Refresh(ctx router.Context) error {
	token := a.Cookie.Get(ctx)
	if token == "" {
		return withMeta(ErrMissingCredential, map[string]any{"credential": "session"})
	}

	res, err := a.Players.Refresh(ctx.Context(), token)
	if err != nil {
		if IsAuthenticationFailure(err) || IsPlayerNotFound(err) {
			a.Cookie.Clear(ctx)
		}
		return err
	}

	return a.respondWithSession(ctx, http.StatusOK, res)
}

func (a *PlayerController) Logout(ctx router.Context) error {
	if err := a.Players.Logout(ctx.Context(), a.Cookie.Get(ctx)); err != nil {
		return err
	}
	a.Cookie.Clear(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (a *PlayerController) LogoutAll(ctx router.Context) error {
	n, err := a.Players.LogoutEverywhere(ctx.Context(), a.Cookie.Get(ctx))
	if err != nil {
		return err
	}
	a.Logger.Info("player logged out everywhere", "revoked", n)
	a.Cookie.Clear(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (a *PlayerController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequest)
	if err := ctx.Bind(payload); err != nil {
		return ValidationError(err)
	}

	if err := a.ResetInit.Execute(ctx.Context(), InitializePasswordResetMessage{
		Username: payload.Username,
	}); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusAccepted)
}

func (a *PlayerController) PasswordResetConfirm(ctx router.Context) error {
	payload := new(PasswordResetConfirmRequest)
	if err := ctx.Bind(payload); err != nil {
		return ValidationError(err)
	}

	if err := a.ResetFinalize.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}); err != nil {
		return err
	}

	a.Cookie.Clear(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (a *PlayerController) LobbyMessages(ctx router.Context) error {
	amount := nonNegative(ctx.QueryInt("amount", 50), 50)
	skip := nonNegative(ctx.QueryInt("skip", 0), 0)

	messages, err := a.Messages.List(ctx.Context(), amount, skip)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{"messages": messages})
}

func nonNegative(v, def int) int {
	if v < 0 {
		return def
	}
	return v
}
