/*
Package notify is the dispatch seam to the notification subsystem.

The delivery mechanics (in-app inbox, email digests) live outside this
service; the workflow only needs "send this message to these people".
The slog-backed implementation is what runs when no real delivery
backend is wired in.
*/
package notify

import (
	"context"
	"log/slog"

	"github.com/BigAlzz/smon/plan"
)

type MessageType string

const (
	TypeApprovalRequest  MessageType = "APPROVAL_REQUEST"
	TypeApprovalResponse MessageType = "APPROVAL_RESPONSE"
	TypeAlert            MessageType = "ALERT"
)

type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// Message is a notification to dispatch.
type Message struct {
	Title      string
	Body       string
	Type       MessageType
	Priority   Priority
	Sender     plan.UserID
	Recipients []plan.UserID

	// Link back to the entity the message is about.
	RelatedType string
	RelatedID   string
}

// Notifier dispatches a notification. Implementations must not block the
// request path on delivery; failures are logged, never surfaced to the
// workflow caller.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.Log.Info("notification",
		"type", string(msg.Type),
		"title", msg.Title,
		"recipients", len(msg.Recipients),
		"related", msg.RelatedType+"/"+msg.RelatedID,
	)
	return nil
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
