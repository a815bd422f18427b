// Package thread holds the client-side view of one conversation's
// message log. The log is the merge of two sources: historical page
// fetches (newest-first) and live change events, plus the session's own
// optimistic sends. Entries are keyed by message id so the optimistic
// insert and its authoritative echo collapse into a single entry, and
// display order is always (created_at, id), never arrival order.
package thread

import (
	"slices"
	"sync"

	"github.com/voxa-chat/voxa/types"
)

type State string

const (
	// StatePending is an optimistic local insert awaiting the store.
	StatePending State = "pending"
	// StateConfirmed entries come from the authoritative store.
	StateConfirmed State = "confirmed"
	// StateFailed sends are kept so the caller can retry or discard.
	StateFailed State = "failed"
)

type Entry struct {
	Message types.Message
	State   State
}

type Thread struct {
	conversationID string

	mu      sync.Mutex
	entries map[string]*Entry
}

func New(conversationID string) *Thread {
	return &Thread{
		conversationID: conversationID,
		entries:        map[string]*Entry{},
	}
}

func (t *Thread) ConversationID() string {
	return t.conversationID
}

// AppendPending records an optimistic local send under a
// locally-generated id. The id is re-keyed on Confirm.
func (t *Thread) AppendPending(msg types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[msg.ID] = &Entry{Message: msg, State: StatePending}
}

// Confirm replaces the optimistic entry with the authoritative message.
// If the realtime echo already arrived under the authoritative id, the
// local entry is dropped instead of duplicating.
func (t *Thread) Confirm(localID string, authoritative types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, localID)
	t.entries[authoritative.ID] = &Entry{Message: authoritative, State: StateConfirmed}
}

// Fail tags a pending send so the caller can offer resend. Failed
// entries are never silently kept as pending nor dropped.
func (t *Thread) Fail(localID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[localID]; ok && entry.State == StatePending {
		entry.State = StateFailed
	}
}

// Retry flips a failed entry back to pending for another send attempt.
func (t *Thread) Retry(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[localID]
	if !ok || entry.State != StateFailed {
		return false
	}

	entry.State = StatePending
	return true
}

func (t *Thread) Discard(localID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, localID)
}

// Apply folds a live change event into the log. Inserts and updates for
// an id already present replace in place, so the sender's optimistic
// entry and the fan-out echo never show up twice. Events for another
// conversation are ignored.
func (t *Thread) Apply(ev types.MessageEvent) {
	if ev.Message.ConversationID != t.conversationID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Op {
	case types.OperationInsert, types.OperationUpdate:
		t.entries[ev.Message.ID] = &Entry{Message: ev.Message, State: StateConfirmed}
	case types.OperationDelete:
		delete(t.entries, ev.Message.ID)
	}
}

// MergePage folds one historical page into the log. The boolean is the
// stale-response guard: pages fetched for a conversation no longer in
// view report false and change nothing.
func (t *Thread) MergePage(conversationID string, msgs []types.Message) bool {
	if conversationID != t.conversationID {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, msg := range msgs {
		t.entries[msg.ID] = &Entry{Message: msg, State: StateConfirmed}
	}

	return true
}

// Messages returns the log in display order.
func (t *Thread) Messages() []types.Message {
	entries := t.Entries()

	out := make([]types.Message, len(entries))
	for i, entry := range entries {
		out[i] = entry.Message
	}
	return out
}

// Entries returns the log in display order with per-entry states.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, *entry)
	}

	slices.SortFunc(out, func(a, b Entry) int {
		if a.Message.Before(b.Message) {
			return -1
		}
		if b.Message.Before(a.Message) {
			return 1
		}
		return 0
	})

	return out
}

// Failed returns the ids of sends awaiting retry or discard.
func (t *Thread) Failed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for id, entry := range t.entries {
		if entry.State == StateFailed {
			out = append(out, id)
		}
	}

	slices.Sort(out)
	return out
}

func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
