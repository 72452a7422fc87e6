package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-arena-auth"
)

const (
	defaultChannel    = "arena"
	defaultObjectType = "player"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if strings.TrimSpace(channel) != "" {
			opts.channel = channel
		}
	}
}

// WithActorFallback sets the actor used for events without a player, like a
// failed login for an unknown username.
func WithActorFallback(actor string) Option {
	return func(opts *normalizeOptions) {
		if strings.TrimSpace(actor) != "" {
			opts.actorFallback = actor
		}
	}
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	playerID := strings.TrimSpace(event.PlayerID)
	actorID := playerID
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   playerID,
		Channel:    options.channel,
		Metadata:   cloneMetadata(event.Metadata),
		OccurredAt: occurredAt,
	}
}

func cloneMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// LogSink returns an auth.ActivitySink writing every normalized event to
// logger at info level.
func LogSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = auth.NopLogger()
	}

	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		n := Normalize(event, opts...)
		args := []any{
			"actor_id", n.ActorID,
			"verb", n.Verb,
			"channel", n.Channel,
			"occurred_at", n.OccurredAt,
		}
		if n.ObjectID != "" {
			args = append(args, "object_type", n.ObjectType, "object_id", n.ObjectID)
		}
		if len(n.Metadata) > 0 {
			args = append(args, "metadata", n.Metadata)
		}
		logger.Info("activity", args...)
		return nil
	})
}
