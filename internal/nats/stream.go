package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/uara/dashboard/internal/model"
)

const (
	// StreamName is the name of the request events stream.
	StreamName = "REQUEST_EVENTS"

	// SubjectPrefix is the prefix for all request event subjects.
	SubjectPrefix = "req"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the request events stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
		Description: "Request lifecycle activity",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// ActivitySubject returns the subject an activity is published on.
func ActivitySubject(a *model.Activity) string {
	return strings.Join([]string{
		SubjectPrefix,
		subjectToken(a.UserID),
		subjectToken(a.RequestID),
		string(a.Type),
	}, ".")
}

// UserFilter returns the filter subject for all of a customer's activity.
func UserFilter(userID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(userID))
}

// subjectToken replaces characters that cannot appear in a subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishActivity publishes an activity to JetStream. The activity id is the
// message id, so a retried publish is deduplicated by the server.
func (m *StreamManager) PublishActivity(ctx context.Context, a *model.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, ActivitySubject(a), data, jetstream.WithMsgID(a.ID)); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}
