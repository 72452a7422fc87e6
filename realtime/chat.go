package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-arena-auth"
)

const maxMessageLength = 200

type SendMessageRequest struct {
	Content string `json:"content"`
}

func (r SendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required, validation.Length(1, maxMessageLength)),
	)
}

type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// ChatEvent is broadcast for every stored chat line
type ChatEvent struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Player    Identity  `json:"player"`
	CreatedAt time.Time `json:"created_at"`
}

type TypingEvent struct {
	Player   Identity `json:"player"`
	IsTyping bool     `json:"isTyping"`
}

// Chat stores and relays lobby messages and typing notices
type Chat struct {
	ns       *Namespace
	messages auth.MessageStore
	logger   auth.Logger
}

// AttachChat wires send_message and typing into ns
func AttachChat(ns *Namespace, messages auth.MessageStore, logger auth.Logger) *Chat {
	if logger == nil {
		logger = auth.NopLogger()
	}

	ch := &Chat{ns: ns, messages: messages, logger: logger}

	ns.Handle(ActionSendMessage, func(ctx context.Context, c *Conn, data json.RawMessage) error {
		var req SendMessageRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		_, err := ch.Send(ctx, c, req.Content)
		return err
	})

	ns.Handle(ActionTyping, func(_ context.Context, c *Conn, data json.RawMessage) error {
		var req TypingRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		ch.Typing(c, req.IsTyping)
		return nil
	})

	return ch
}

// FormatMessage renders a chat line as "[nickname] - content". Brackets
// are stripped from the content so a line can not fake another sender.
func FormatMessage(nickname, content string) string {
	content = strings.NewReplacer("[", "", "]", "").Replace(strings.TrimSpace(content))
	return fmt.Sprintf("[%s] - %s", nickname, content)
}

// Send stores a chat line and broadcasts it to the namespace
func (ch *Chat) Send(ctx context.Context, c *Conn, content string) (*auth.ChatMessage, error) {
	if err := (SendMessageRequest{Content: strings.TrimSpace(content)}).Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	identity := c.Identity()
	playerID, err := uuid.Parse(identity.PlayerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "connection identity has an invalid player id")
	}

	msg, err := ch.messages.Save(ctx, &auth.ChatMessage{
		PlayerID: playerID,
		Content:  FormatMessage(identity.Nickname, content),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store chat message")
	}

	event := ChatEvent{
		ID:      msg.ID.String(),
		Content: msg.Content,
		Player:  identity,
	}
	if msg.CreatedAt != nil {
		event.CreatedAt = *msg.CreatedAt
	}

	ch.ns.Broadcast(EventMessage, event)
	return msg, nil
}

// Typing relays a typing notice to everybody but the sender
func (ch *Chat) Typing(c *Conn, isTyping bool) {
	ch.ns.BroadcastExcept(c.ID(), EventTyping, TypingEvent{
		Player:   c.Identity(),
		IsTyping: isTyping,
	})
}
