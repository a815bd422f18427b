package service

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nicolasparada/go-errs/httperrs"
	"github.com/ory/dockertest/v3"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/postgres"
	"github.com/voxa-chat/voxa/postgres/migrator"
	"github.com/voxa-chat/voxa/presence"
	"github.com/voxa-chat/voxa/pubsub"
	"github.com/voxa-chat/voxa/types"
)

var (
	testDB      *pgxpool.Pool
	testService *Service
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	var skipIntegration bool
	flag.BoolVar(&skipIntegration, "skip-integration", false, "Skip integration tests docker setup")
	flag.Parse()

	if skipIntegration || testing.Short() {
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Printf("could not create docker pool: %v\n", err)
		return 1
	}

	var cleanup func() error
	testDB, cleanup, err = setupTestDB(pool)
	if err != nil {
		fmt.Printf("could not setup test db: %v\n", err)
		return 1
	}

	defer func() {
		if err := cleanup(); err != nil {
			fmt.Printf("could not cleanup postgres container: %v\n", err)
		}
	}()

	if err := migrator.Migrate(context.Background(), testDB, postgres.MigrationsFS); err != nil {
		fmt.Printf("could not run migrations: %v\n", err)
		return 1
	}

	testService = New(&Config{
		Postgres:          postgres.New(testDB),
		PubSub:            pubsub.NewMemory(),
		Presence:          presence.New(nil, presence.Config{}),
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		MediaBucket:       "voxa-media",
		BaseCtx:           context.Background(),
		BackgroundTimeout: 5 * time.Second,
	})

	return m.Run()
}

func setupTestDB(pool *dockertest.Pool) (*pgxpool.Pool, func() error, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=voxa",
			"POSTGRES_PASSWORD=voxa",
			"POSTGRES_DB=voxa",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create postgres resource: %w", err)
	}

	var db *pgxpool.Pool
	err = pool.Retry(func() (err error) {
		hostPort := resource.GetHostPort("5432/tcp")
		db, err = pgxpool.New(context.Background(), "postgresql://voxa:voxa@"+hostPort+"/voxa?sslmode=disable")
		if err != nil {
			return fmt.Errorf("could not open db: %w", err)
		}

		// do not close db

		if err = db.Ping(context.Background()); err != nil {
			return fmt.Errorf("could not ping db: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return db, func() error {
		return pool.Purge(resource)
	}, nil
}

func skipIfNoDB(t *testing.T) {
	t.Helper()
	if testService == nil {
		t.Skip("integration tests skipped")
	}
}

func createTestUser(t *testing.T, name string) (types.User, context.Context) {
	t.Helper()

	user, err := testService.EnsureUser(context.Background(), types.UpsertUser{
		UserID:      id.Generate(),
		Email:       name + "." + id.Generate() + "@example.com",
		DisplayName: name,
	})
	if err != nil {
		t.Fatalf("could not create user %s: %v", name, err)
	}

	return user, auth.ContextWithUser(context.Background(), user)
}

func wantHTTPCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", code)
	}
	if got := httperrs.Code(err); got != code {
		t.Fatalf("error %q maps to status %d, want %d", err, got, code)
	}
}

func Test_CreateDirectConversation_Idempotent(t *testing.T) {
	skipIfNoDB(t)

	alice, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	first, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	// creating again, from either side, returns the same conversation
	again, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("second create returned %q, want %q", again.ID, first.ID)
	}

	fromOtherSide, err := testService.CreateDirectConversation(bobCtx, types.CreateDirectConversation{OtherUserID: alice.ID})
	if err != nil {
		t.Fatal(err)
	}
	if fromOtherSide.ID != first.ID {
		t.Errorf("create from other side returned %q, want %q", fromOtherSide.ID, first.ID)
	}

	if _, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: alice.ID}); err == nil {
		t.Error("expected self conversation to be rejected")
	}
}

func Test_CreateDirectConversation_BlockedUser(t *testing.T) {
	skipIfNoDB(t)

	alice, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	if _, err := testService.BlockContact(aliceCtx, types.BlockContact{ContactID: bob.ID}); err != nil {
		t.Fatal(err)
	}

	_, err := testService.CreateDirectConversation(bobCtx, types.CreateDirectConversation{OtherUserID: alice.ID})
	wantHTTPCode(t, err, http.StatusForbidden)

	_, err = testService.CreateContactRequest(bobCtx, types.CreateContactRequest{ContactID: alice.ID})
	wantHTTPCode(t, err, http.StatusForbidden)
}

func Test_GroupConversation_Permissions(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")
	carol, _ := createTestUser(t, "carol")
	dave, _ := createTestUser(t, "dave")
	_, eveCtx := createTestUser(t, "eve")

	conversation, err := testService.CreateGroupConversation(aliceCtx, types.CreateGroupConversation{
		Name:           "book club",
		ParticipantIDs: []string{bob.ID, carol.ID},
	})
	if err != nil {
		t.Fatal(err)
	}

	// only admins can add participants
	_, err = testService.AddParticipant(bobCtx, types.AddParticipant{ConversationID: conversation.ID, UserID: dave.ID})
	wantHTTPCode(t, err, http.StatusForbidden)

	// non-participants cannot touch the conversation at all
	_, err = testService.AddParticipant(eveCtx, types.AddParticipant{ConversationID: conversation.ID, UserID: dave.ID})
	wantHTTPCode(t, err, http.StatusForbidden)

	if _, err := testService.AddParticipant(aliceCtx, types.AddParticipant{ConversationID: conversation.ID, UserID: dave.ID}); err != nil {
		t.Fatalf("admin add participant: %v", err)
	}

	// adding twice conflicts
	_, err = testService.AddParticipant(aliceCtx, types.AddParticipant{ConversationID: conversation.ID, UserID: dave.ID})
	wantHTTPCode(t, err, http.StatusConflict)

	// non-admins cannot remove others but can always leave
	err = testService.RemoveParticipant(bobCtx, types.RemoveParticipant{ConversationID: conversation.ID, UserID: carol.ID})
	wantHTTPCode(t, err, http.StatusForbidden)

	if err := testService.RemoveParticipant(bobCtx, types.RemoveParticipant{ConversationID: conversation.ID, UserID: bob.ID}); err != nil {
		t.Fatalf("self removal: %v", err)
	}

	retrieve := types.RetrieveConversation{ConversationID: conversation.ID}
	got, err := testService.Conversation(aliceCtx, retrieve)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Participants) != 3 {
		t.Errorf("participants = %d, want 3 (alice, carol, dave)", len(got.Participants))
	}

	// bob is out now
	_, err = testService.Conversation(bobCtx, types.RetrieveConversation{ConversationID: conversation.ID})
	wantHTTPCode(t, err, http.StatusForbidden)
}

func Test_Messages_SendFetchOrderAndPagination(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		if _, err := testService.CreateMessage(aliceCtx, types.CreateMessage{
			ConversationID: conversation.ID,
			Content:        content,
		}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := testService.Messages(bobCtx, types.ListMessages{
		ConversationID: conversation.ID,
		Page:           1,
		Limit:          2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("page 1 items = %d, want 2", len(page.Items))
	}
	if page.Items[0].Content != "third" || page.Items[1].Content != "second" {
		t.Errorf("page 1 order = [%q, %q], want newest first", page.Items[0].Content, page.Items[1].Content)
	}
	if !page.PageInfo.HasMore {
		t.Error("expected more pages")
	}

	rest, err := testService.Messages(bobCtx, types.ListMessages{
		ConversationID: conversation.ID,
		Page:           2,
		Limit:          2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest.Items) != 1 || rest.Items[0].Content != "first" {
		t.Fatalf("page 2 = %+v, want just the first message", rest.Items)
	}
	if rest.PageInfo.HasMore {
		t.Error("expected no more pages")
	}

	// bob's fetch marked everything read; alice sees the receipts
	seen, err := testService.Messages(aliceCtx, types.ListMessages{ConversationID: conversation.ID})
	if err != nil {
		t.Fatal(err)
	}
	for _, msg := range seen.Items {
		var readByBob bool
		for _, rs := range msg.ReadStatuses {
			if rs.UserID == bob.ID {
				readByBob = true
			}
		}
		if !readByBob {
			t.Errorf("message %q has no read receipt from bob", msg.Content)
		}
	}
}

func Test_Messages_NonParticipantDenied(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, _ := createTestUser(t, "bob")
	_, eveCtx := createTestUser(t, "eve")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	_, err = testService.Messages(eveCtx, types.ListMessages{ConversationID: conversation.ID})
	wantHTTPCode(t, err, http.StatusForbidden)

	_, err = testService.CreateMessage(eveCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "hi"})
	wantHTTPCode(t, err, http.StatusForbidden)
}

func Test_MarkMessageAsRead_Idempotent(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := testService.CreateMessage(aliceCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	// reading twice leaves a single receipt with the original read_at
	if err := testService.MarkMessageAsRead(bobCtx, types.MarkMessageAsRead{MessageID: msg.ID}); err != nil {
		t.Fatal(err)
	}
	if err := testService.MarkMessageAsRead(bobCtx, types.MarkMessageAsRead{MessageID: msg.ID}); err != nil {
		t.Fatal(err)
	}

	// marking your own message is a silent no-op
	if err := testService.MarkMessageAsRead(aliceCtx, types.MarkMessageAsRead{MessageID: msg.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := testService.Postgres.Message(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ReadStatuses) != 1 {
		t.Fatalf("read statuses = %d, want 1", len(got.ReadStatuses))
	}
	if got.ReadStatuses[0].UserID != bob.ID {
		t.Errorf("read receipt from %q, want %q", got.ReadStatuses[0].UserID, bob.ID)
	}
}

func Test_ReactToMessage_ReplacesPrevious(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := testService.CreateMessage(aliceCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "check this out"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := testService.ReactToMessage(bobCtx, types.ReactToMessage{MessageID: msg.ID, Reaction: "👍"}); err != nil {
		t.Fatal(err)
	}
	if _, err := testService.ReactToMessage(bobCtx, types.ReactToMessage{MessageID: msg.ID, Reaction: "🔥"}); err != nil {
		t.Fatal(err)
	}

	if _, err := testService.ReactToMessage(bobCtx, types.ReactToMessage{MessageID: msg.ID, Reaction: "not an emoji"}); err == nil {
		t.Fatal("expected non-emoji reaction to be rejected")
	}

	got, err := testService.Postgres.Message(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Reactions) != 1 {
		t.Fatalf("reactions = %d, want 1", len(got.Reactions))
	}
	if got.Reactions[0].Reaction != "🔥" {
		t.Errorf("reaction = %q, want the replacement", got.Reactions[0].Reaction)
	}
}

func Test_DeleteMessage_AuthorOnly(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := testService.CreateMessage(aliceCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "oops"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = testService.DeleteMessage(bobCtx, types.DeleteMessage{MessageID: msg.ID})
	wantHTTPCode(t, err, http.StatusForbidden)

	deleted, err := testService.DeleteMessage(aliceCtx, types.DeleteMessage{MessageID: msg.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !deleted.IsDeleted {
		t.Error("expected message to be tombstoned")
	}
	if deleted.ID != msg.ID {
		t.Errorf("deleted id = %q, want %q", deleted.ID, msg.ID)
	}
}

func Test_ContactRequest_OwnBlockedRowConflicts(t *testing.T) {
	skipIfNoDB(t)

	alice, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	if _, err := testService.BlockContact(aliceCtx, types.BlockContact{ContactID: bob.ID}); err != nil {
		t.Fatal(err)
	}

	// the blocker already holds a row for the target, so their own
	// request conflicts rather than being forbidden
	_, err := testService.CreateContactRequest(aliceCtx, types.CreateContactRequest{ContactID: bob.ID})
	wantHTTPCode(t, err, http.StatusConflict)

	// the blocked side holds no row and hits the block gate
	_, err = testService.CreateContactRequest(bobCtx, types.CreateContactRequest{ContactID: alice.ID})
	wantHTTPCode(t, err, http.StatusForbidden)
}

func Test_ContactRequest_AcceptIsReciprocal(t *testing.T) {
	skipIfNoDB(t)

	alice, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	request, err := testService.CreateContactRequest(aliceCtx, types.CreateContactRequest{ContactID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}
	if request.Status != types.ContactStatusPending {
		t.Errorf("status = %q, want pending", request.Status)
	}

	// duplicate requests conflict
	_, err = testService.CreateContactRequest(aliceCtx, types.CreateContactRequest{ContactID: bob.ID})
	wantHTTPCode(t, err, http.StatusConflict)

	inbound, err := testService.ContactRequests(bobCtx, types.ListContactRequests{})
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, c := range inbound {
		if c.ID == request.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("request %q not in bob's inbound list", request.ID)
	}

	accepted, err := testService.AcceptContactRequest(bobCtx, types.AcceptContactRequest{RequestID: request.ID})
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Status != types.ContactStatusAccepted {
		t.Errorf("status = %q, want accepted", accepted.Status)
	}

	// both sides now list each other as accepted contacts
	aliceContacts, err := testService.Contacts(aliceCtx, types.ListContacts{})
	if err != nil {
		t.Fatal(err)
	}
	bobContacts, err := testService.Contacts(bobCtx, types.ListContacts{})
	if err != nil {
		t.Fatal(err)
	}

	if !containsContact(aliceContacts, bob.ID) {
		t.Error("bob missing from alice's contacts")
	}
	if !containsContact(bobContacts, alice.ID) {
		t.Error("alice missing from bob's contacts")
	}
}

func Test_ContactRequest_Reject(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	request, err := testService.CreateContactRequest(aliceCtx, types.CreateContactRequest{ContactID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	if err := testService.RejectContactRequest(bobCtx, types.RejectContactRequest{RequestID: request.ID}); err != nil {
		t.Fatal(err)
	}

	// rejecting again finds nothing
	err = testService.RejectContactRequest(bobCtx, types.RejectContactRequest{RequestID: request.ID})
	wantHTTPCode(t, err, http.StatusNotFound)
}

func Test_MessageStream_ReceivesFanOut(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")
	_, eveCtx := createTestUser(t, "eve")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	// non-participants cannot subscribe
	_, err = testService.MessageStream(eveCtx, conversation.ID)
	wantHTTPCode(t, err, http.StatusForbidden)

	streamCtx, cancel := context.WithCancel(bobCtx)
	defer cancel()

	stream, err := testService.MessageStream(streamCtx, conversation.ID)
	if err != nil {
		t.Fatal(err)
	}

	sent, err := testService.CreateMessage(aliceCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "ping"})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-stream:
		if ev.Op != types.OperationInsert {
			t.Errorf("op = %q, want insert", ev.Op)
		}
		if ev.Message.ID != sent.ID || ev.Message.Content != "ping" {
			t.Errorf("got message %+v, want the sent one", ev.Message)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for fan-out event")
	}
}

func Test_SubscribeToMessages_ExplicitUnsubscribe(t *testing.T) {
	skipIfNoDB(t)

	_, aliceCtx := createTestUser(t, "alice")
	bob, bobCtx := createTestUser(t, "bob")

	conversation, err := testService.CreateDirectConversation(aliceCtx, types.CreateDirectConversation{OtherUserID: bob.ID})
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan types.MessageEvent, 8)
	sub, err := testService.SubscribeToMessages(bobCtx, conversation.ID, func(ev types.MessageEvent) {
		got <- ev
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if state := sub.State(); state != SubscriptionActive {
		t.Fatalf("state = %q, want %q", state, SubscriptionActive)
	}

	if _, err := testService.CreateMessage(aliceCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "before"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		if ev.Message.Content != "before" {
			t.Errorf("content = %q, want %q", ev.Message.Content, "before")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event before unsubscribe")
	}

	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}

	if state := sub.State(); state != SubscriptionClosed {
		t.Fatalf("state = %q, want %q", state, SubscriptionClosed)
	}

	if _, err := testService.CreateMessage(aliceCtx, types.CreateMessage{ConversationID: conversation.ID, Content: "after"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		t.Errorf("received %q after unsubscribe", ev.Message.Content)
	case <-time.After(time.Second):
	}
}

func Test_Users_SearchExcludesSelf(t *testing.T) {
	skipIfNoDB(t)

	marker := id.Generate()
	alice, aliceCtx := createTestUser(t, "searchable-alice-"+marker)
	bob, _ := createTestUser(t, "searchable-bob-"+marker)

	users, err := testService.Users(aliceCtx, types.ListUsers{Query: "searchable"})
	if err != nil {
		t.Fatal(err)
	}

	var sawBob, sawSelf bool
	for _, u := range users {
		if u.ID == bob.ID {
			sawBob = true
		}
		if u.ID == alice.ID {
			sawSelf = true
		}
	}
	if !sawBob {
		t.Error("expected bob in search results")
	}
	if sawSelf {
		t.Error("search results must exclude the caller")
	}
}

func containsContact(contacts []types.Contact, userID string) bool {
	for _, c := range contacts {
		if c.ContactID == userID || c.UserID == userID {
			return true
		}
	}
	return false
}
