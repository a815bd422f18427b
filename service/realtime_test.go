package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/pubsub"
	"github.com/voxa-chat/voxa/types"
)

func newTestService(ps pubsub.PubSub) *Service {
	return New(&Config{
		PubSub:            ps,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		BaseCtx:           context.Background(),
		BackgroundTimeout: 5 * time.Second,
	})
}

func Test_ConversationStream_DeliversOnlyOwnInbox(t *testing.T) {
	ps := pubsub.NewMemory()
	svc := newTestService(ps)

	user := types.User{ID: id.Generate()}
	ctx, cancel := context.WithCancel(auth.ContextWithUser(context.Background(), user))
	defer cancel()

	stream, err := svc.ConversationStream(ctx)
	if err != nil {
		t.Fatal(err)
	}

	conversationID := id.Generate()
	svc.publishConversationEventTo(user.ID, types.ConversationEvent{
		Op:           types.OperationInsert,
		Conversation: types.Conversation{ID: conversationID},
	})
	svc.publishConversationEventTo(id.Generate(), types.ConversationEvent{
		Op:           types.OperationInsert,
		Conversation: types.Conversation{ID: id.Generate()},
	})

	select {
	case ev := <-stream:
		if ev.Op != types.OperationInsert {
			t.Errorf("op = %q, want insert", ev.Op)
		}
		if ev.Conversation.ID != conversationID {
			t.Errorf("conversation id = %q, want %q", ev.Conversation.ID, conversationID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for conversation event")
	}

	select {
	case ev, ok := <-stream:
		if ok {
			t.Errorf("unexpected extra event for conversation %q", ev.Conversation.ID)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func Test_ConversationStream_RequiresAuth(t *testing.T) {
	svc := newTestService(pubsub.NewMemory())

	if _, err := svc.ConversationStream(context.Background()); err == nil {
		t.Fatal("expected error for anonymous subscriber")
	}
}

func Test_ConversationStream_ClosesOnContextDone(t *testing.T) {
	svc := newTestService(pubsub.NewMemory())

	ctx, cancel := context.WithCancel(auth.ContextWithUser(context.Background(), types.User{ID: id.Generate()}))

	stream, err := svc.ConversationStream(ctx)
	if err != nil {
		t.Fatal(err)
	}

	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close after context cancel")
	}
}

func Test_MessageSubscription_StateMachine(t *testing.T) {
	var gotErr error
	unsubbed := false
	sub := &MessageSubscription{
		state:   SubscriptionSubscribing,
		unsub:   func() error { unsubbed = true; return nil },
		onError: func(err error) { gotErr = err },
	}

	if sub.deliverable() {
		t.Error("deliverable while still subscribing")
	}

	sub.mu.Lock()
	sub.state = SubscriptionActive
	sub.mu.Unlock()

	if !sub.deliverable() {
		t.Error("not deliverable while active")
	}

	sub.fail(errors.New("connection reset"))

	if got := sub.State(); got != SubscriptionError {
		t.Errorf("state = %q, want %q", got, SubscriptionError)
	}
	if gotErr == nil {
		t.Error("error hook was not invoked")
	}
	if !unsubbed {
		t.Error("failing did not release the underlying subscription")
	}
	if sub.deliverable() {
		t.Error("deliverable after error")
	}

	gotErr = nil
	sub.fail(errors.New("again"))
	if gotErr != nil {
		t.Error("error hook fired twice")
	}
}

func Test_MessageSubscription_CloseIsIdempotent(t *testing.T) {
	unsubs := 0
	sub := &MessageSubscription{
		state: SubscriptionActive,
		unsub: func() error { unsubs++; return nil },
	}

	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}

	if unsubs != 1 {
		t.Errorf("unsubscribed %d times, want 1", unsubs)
	}
	if got := sub.State(); got != SubscriptionClosed {
		t.Errorf("state = %q, want %q", got, SubscriptionClosed)
	}
	if sub.deliverable() {
		t.Error("deliverable after close")
	}
}

func Test_BroadcastMessageEvent_Codec(t *testing.T) {
	ps := pubsub.NewMemory()
	svc := newTestService(ps)

	msg := types.Message{
		ID:             id.Generate(),
		ConversationID: id.Generate(),
		UserID:         id.Generate(),
		Content:        "hey there",
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}

	got := make(chan types.MessageEvent, 1)
	unsub, err := ps.Sub(messageTopic(msg.ConversationID), func(data []byte) {
		var ev types.MessageEvent
		if err := msgpack.Unmarshal(data, &ev); err != nil {
			t.Errorf("decode message event: %v", err)
			return
		}
		got <- ev
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	svc.broadcastMessageEvent(types.OperationInsert, msg)

	select {
	case ev := <-got:
		if ev.Op != types.OperationInsert {
			t.Errorf("op = %q, want insert", ev.Op)
		}
		if ev.Message.ID != msg.ID || ev.Message.Content != msg.Content {
			t.Errorf("message round trip mismatch: got %+v", ev.Message)
		}
		if !ev.Message.CreatedAt.Equal(msg.CreatedAt) {
			t.Errorf("createdAt = %v, want %v", ev.Message.CreatedAt, msg.CreatedAt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message event")
	}
}
