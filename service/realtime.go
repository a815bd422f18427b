package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/nicolasparada/go-errs"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/types"
)

func messageTopic(conversationID string) string { return "messages_" + conversationID }

func conversationTopic(userID string) string { return "conversations_" + userID }

type SubscriptionState string

const (
	SubscriptionIdle        SubscriptionState = "idle"
	SubscriptionSubscribing SubscriptionState = "subscribing"
	SubscriptionActive      SubscriptionState = "active"
	SubscriptionError       SubscriptionState = "error"
	SubscriptionClosed      SubscriptionState = "closed"
)

// MessageSubscription is the explicit handle for one conversation's
// event feed. The owner must Close it; nothing is released implicitly.
// On a transport error the handle moves to SubscriptionError, stops
// delivering, and reports through the onError hook; recovering means
// subscribing again.
type MessageSubscription struct {
	conversationID string

	mu      sync.Mutex
	state   SubscriptionState
	unsub   func() error
	onError func(error)
}

func (s *MessageSubscription) ConversationID() string { return s.conversationID }

func (s *MessageSubscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the subscription down. No events are delivered after
// Close returns. Closing twice is fine.
func (s *MessageSubscription) Close() error {
	s.mu.Lock()
	if s.state == SubscriptionClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = SubscriptionClosed
	unsub := s.unsub
	s.mu.Unlock()

	if unsub != nil {
		return unsub()
	}
	return nil
}

func (s *MessageSubscription) deliverable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SubscriptionActive
}

func (s *MessageSubscription) fail(err error) {
	s.mu.Lock()
	if s.state != SubscriptionActive {
		s.mu.Unlock()
		return
	}
	s.state = SubscriptionError
	unsub, onError := s.unsub, s.onError
	s.mu.Unlock()

	if unsub != nil {
		_ = unsub()
	}
	if onError != nil {
		onError(err)
	}
}

// SubscribeToMessages registers cb for the conversation's change
// events. Only participants may subscribe. onError may be nil.
//
// Deliveries carry inserts, updates and deletes in arrival order, which
// is not display order; callers merge by message id and sort.
func (svc *Service) SubscribeToMessages(ctx context.Context, conversationID string, cb func(types.MessageEvent), onError func(error)) (*MessageSubscription, error) {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	sub := &MessageSubscription{
		conversationID: conversationID,
		state:          SubscriptionSubscribing,
		onError:        onError,
	}

	isParticipant, err := svc.Postgres.IsParticipant(ctx, conversationID, user.ID)
	if err != nil {
		return nil, err
	}

	if !isParticipant {
		return nil, errs.PermissionDeniedError("only participants can subscribe to a conversation")
	}

	unsub, err := svc.PubSub.Sub(messageTopic(conversationID), func(data []byte) {
		if !sub.deliverable() {
			return
		}

		var ev types.MessageEvent
		if err := msgpack.Unmarshal(data, &ev); err != nil {
			sub.fail(fmt.Errorf("msgpack decode message event: %w", err))
			return
		}

		cb(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to message events: %w", err)
	}

	sub.mu.Lock()
	sub.unsub = unsub
	sub.state = SubscriptionActive
	sub.mu.Unlock()

	return sub, nil
}

// MessageStream is the channel flavor of SubscribeToMessages: the
// subscription lives as long as ctx and the channel closes when ctx is
// done.
func (svc *Service) MessageStream(ctx context.Context, conversationID string) (<-chan types.MessageEvent, error) {
	out := make(chan types.MessageEvent)

	sub, err := svc.SubscribeToMessages(ctx, conversationID, func(ev types.MessageEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}, func(err error) {
		svc.Logger.Error("message subscription failed", "error", err, "conversation", conversationID)
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Close(); err != nil {
			svc.Logger.Error("unsubscribe from message events", "error", err)
		}
		close(out)
	}()

	return out, nil
}

// ConversationStream subscribes to inbox-level events for the logged-in
// user: conversations created, bumped by new messages, or left.
func (svc *Service) ConversationStream(ctx context.Context) (<-chan types.ConversationEvent, error) {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	out := make(chan types.ConversationEvent)
	unsub, err := svc.PubSub.Sub(conversationTopic(user.ID), func(data []byte) {
		var ev types.ConversationEvent
		if err := msgpack.Unmarshal(data, &ev); err != nil {
			svc.Logger.Error("msgpack decode conversation event", "error", err)
			return
		}

		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to conversation events: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := unsub(); err != nil {
			svc.Logger.Error("unsubscribe from conversation events", "error", err)
		}
		close(out)
	}()

	return out, nil
}

func (svc *Service) broadcastMessageEvent(op types.Operation, msg types.Message) {
	svc.background(func(ctx context.Context) error {
		ev := types.MessageEvent{Op: op, Message: msg}
		b, err := msgpack.Marshal(ev)
		if err != nil {
			return fmt.Errorf("msgpack encode message event: %w", err)
		}

		if err := svc.PubSub.Pub(messageTopic(msg.ConversationID), b); err != nil {
			return fmt.Errorf("publish message event: %w", err)
		}

		return nil
	})
}

// broadcastConversationEvent publishes to every participant's inbox
// topic so conversation lists reorder live.
func (svc *Service) broadcastConversationEvent(op types.Operation, conversation types.Conversation) {
	svc.background(func(ctx context.Context) error {
		ev := types.ConversationEvent{Op: op, Conversation: conversation}
		b, err := msgpack.Marshal(ev)
		if err != nil {
			return fmt.Errorf("msgpack encode conversation event: %w", err)
		}

		participantIDs, err := svc.Postgres.ParticipantIDs(ctx, conversation.ID)
		if err != nil {
			return err
		}

		for _, userID := range participantIDs {
			if err := svc.PubSub.Pub(conversationTopic(userID), b); err != nil {
				return fmt.Errorf("publish conversation event: %w", err)
			}
		}

		return nil
	})
}

// publishConversationEventTo targets a single user's inbox topic.
func (svc *Service) publishConversationEventTo(userID string, ev types.ConversationEvent) {
	svc.background(func(ctx context.Context) error {
		b, err := msgpack.Marshal(ev)
		if err != nil {
			return fmt.Errorf("msgpack encode conversation event: %w", err)
		}

		if err := svc.PubSub.Pub(conversationTopic(userID), b); err != nil {
			return fmt.Errorf("publish conversation event: %w", err)
		}

		return nil
	})
}

// broadcastAnnotatedMessage refetches the message with its sender,
// reactions and read statuses before publishing, so subscribers get the
// same shape a page fetch returns.
func (svc *Service) broadcastAnnotatedMessage(messageID string) {
	svc.background(func(ctx context.Context) error {
		msg, err := svc.Postgres.Message(ctx, messageID)
		if err != nil {
			return err
		}

		ev := types.MessageEvent{Op: types.OperationUpdate, Message: msg}
		b, err := msgpack.Marshal(ev)
		if err != nil {
			return fmt.Errorf("msgpack encode message event: %w", err)
		}

		if err := svc.PubSub.Pub(messageTopic(msg.ConversationID), b); err != nil {
			return fmt.Errorf("publish message event: %w", err)
		}

		return nil
	})
}
