package activitymap

import (
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
)

const (
	// MetadataKeyAnonymous is set when the event carried no actor, e.g. a
	// failed login.
	MetadataKeyAnonymous = "anonymous"
	// MetadataKeySelf is set when the actor acted on its own account.
	MetadataKeySelf = "self"
)

const (
	defaultObjectType = "account"
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
	now           func() time.Time
}

// Normalize converts an accounts.ActivityEvent into a Normalized record.
// The channel defaults to the event type namespace ("account", "auth") and
// the verb to the remainder.
func Normalize(event accounts.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	namespace, verb := splitEventType(string(event.EventType))
	channel := firstNonEmpty(options.channel, namespace)

	actorID := firstNonEmpty(
		strings.TrimSpace(event.ActorID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       verb,
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel forces the channel instead of deriving it from the event type.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if objectType = strings.TrimSpace(objectType); objectType != "" {
			opts.objectType = objectType
		}
	}
}

// WithActorFallback sets the actor id used when the event has none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func splitEventType(eventType string) (string, string) {
	eventType = strings.TrimSpace(eventType)
	idx := strings.Index(eventType, ".")
	if idx <= 0 || idx == len(eventType)-1 {
		return "", eventType
	}
	return eventType[:idx], eventType[idx+1:]
}

func normalizeMetadata(event accounts.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	actor := strings.TrimSpace(event.ActorID)
	switch {
	case actor == "":
		metadata = withKey(metadata, MetadataKeyAnonymous, true)
	case actor == strings.TrimSpace(event.UserID):
		metadata = withKey(metadata, MetadataKeySelf, true)
	}

	return metadata
}

func withKey(metadata map[string]any, key string, value any) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if _, exists := metadata[key]; !exists {
		metadata[key] = value
	}
	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
