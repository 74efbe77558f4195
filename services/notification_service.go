package services

import (
	"context"
	"fmt"
	"log/slog"

	"meetup-system/monitoring"
	"meetup-system/utils"

	pubnub "github.com/pubnub/go"
)

// Notification event types emitted by the lifecycle and membership engines.
const (
	EventMeetupApproved    = "meetup_approved"
	EventMeetupRejected    = "meetup_rejected"
	EventApprovalRequested = "approval_requested"
	EventMemberJoined      = "member_joined"
)

// Notifier dispatches events to users. Fire-and-forget: delivery failures are
// logged and counted, never surfaced to the caller, so a lifecycle transition
// that already committed is never rolled back by a broken notifier.
type Notifier interface {
	Notify(ctx context.Context, recipientUserID, eventType string, payload map[string]any)
}

// PubNubNotifier publishes to the recipient's personal channel. The circuit
// breaker stops publish attempts while PubNub is unreachable.
type PubNubNotifier struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub-notifier"),
	}
}

func (n *PubNubNotifier) Notify(_ context.Context, recipientUserID, eventType string, payload map[string]any) {
	if n.pubnub == nil || recipientUserID == "" {
		return
	}

	message := map[string]any{"type": eventType}
	for k, v := range payload {
		message[k] = v
	}

	go func() {
		err := n.breaker.Execute(func() error {
			channel := fmt.Sprintf("user-%s", recipientUserID)
			_, _, err := n.pubnub.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		})
		if err != nil {
			monitoring.NotificationFailure()
			slog.Error("notification publish failed",
				"recipient", recipientUserID,
				"event", eventType,
				"error", err,
			)
		}
	}()
}

// NopNotifier discards every event; used when PubNub keys are not configured
// and in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, map[string]any) {}
