package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minho5235/jammin/internal/db"
	"github.com/minho5235/jammin/internal/models"
	"go.uber.org/zap"
)

// echoCompleter answers every prompt with a canned reply and remembers
// the prompts it saw.
type echoCompleter struct {
	reply   string
	prompts []string
}

func (e *echoCompleter) Complete(_ context.Context, prompt string) string {
	e.prompts = append(e.prompts, prompt)
	if e.reply == "" {
		return "echo: " + prompt
	}
	return e.reply
}

func newTestController(t *testing.T) (*Controller, *db.Store, *echoCompleter) {
	t.Helper()
	store := db.Open(filepath.Join(t.TempDir(), "chat.db"), zap.NewNop())
	if !store.Available() {
		t.Fatal("test store unavailable")
	}
	t.Cleanup(func() { store.Close() })
	gw := &echoCompleter{}
	return NewController(store, gw, zap.NewNop()), store, gw
}

func roundTrip(t *testing.T, ctl *Controller, text string) *Send {
	t.Helper()
	send, err := ctl.SendMessage(text)
	if err != nil {
		t.Fatalf("SendMessage(%q) err: %v", text, err)
	}
	ctl.AcceptReply(send.Complete(context.Background()))
	return send
}

func TestFirstSendCreatesSessionLazily(t *testing.T) {
	ctl, store, gw := newTestController(t)

	if got := ctl.ListSessions(""); len(got) != 0 {
		t.Fatalf("fresh store should list nothing, got %+v", got)
	}

	send, err := ctl.SendMessage("hello")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if !send.SessionCreated {
		t.Fatal("expected lazy session creation on first send")
	}

	// The user message is persisted before any completion runs.
	if len(gw.prompts) != 0 {
		t.Fatal("completion issued before the caller ran it")
	}
	messages := store.Messages(send.SessionID)
	if len(messages) != 1 || messages[0].Sender != models.SenderUser || messages[0].Content != "hello" {
		t.Fatalf("user message not persisted first: %+v", messages)
	}

	sessions := ctl.Listing()
	if len(sessions) != 1 || sessions[0].Title != "hello" {
		t.Fatalf("expected one session titled from the message, got %+v", sessions)
	}
	if ctl.ActiveSession() != send.SessionID || ctl.ActiveIndex() != 0 {
		t.Fatal("selection out of sync after lazy creation")
	}
}

func TestSecondSendReusesActiveSession(t *testing.T) {
	ctl, store, _ := newTestController(t)

	first := roundTrip(t, ctl, "hello")
	second := roundTrip(t, ctl, "more on that")

	if second.SessionCreated {
		t.Fatal("second send must not create a session")
	}
	if second.SessionID != first.SessionID {
		t.Fatal("second send landed in a different session")
	}
	if got := store.Messages(first.SessionID); len(got) != 4 {
		t.Fatalf("expected 4 messages (2 turns), got %d", len(got))
	}
	if got := ctl.Listing(); len(got) != 1 {
		t.Fatalf("expected a single session, got %d", len(got))
	}
}

func TestTitleDerivation(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"short", "short"},
		{"exactly15chars!", "exactly15chars!"},
		{"exactly16chars!!", "exactly16chars!..."},
		{"Explain gravity to me like I am five", "Explain gravity..."},
		{"한글로 된 아주 길고 긴 첫 메시지입니다", "한글로 된 아주 길고 긴 첫..."},
	}
	for _, tc := range cases {
		got := deriveTitle(tc.input)
		if got != tc.want {
			t.Fatalf("deriveTitle(%q) = %q, want %q", tc.input, got, tc.want)
		}
		if tc.input != got && !strings.HasSuffix(got, "...") {
			t.Fatalf("truncated title missing ellipsis: %q", got)
		}
	}
}

func TestEmptyInputIsIgnored(t *testing.T) {
	ctl, store, gw := newTestController(t)

	for _, input := range []string{"", "   ", "\n\t "} {
		if _, err := ctl.SendMessage(input); err != ErrEmptyInput {
			t.Fatalf("SendMessage(%q): expected ErrEmptyInput, got %v", input, err)
		}
	}
	if got := store.AllSessions(); len(got) != 0 {
		t.Fatalf("blank input created sessions: %+v", got)
	}
	if len(gw.prompts) != 0 {
		t.Fatal("blank input reached the gateway")
	}
}

func TestReplySavedAgainstRequestTimeSession(t *testing.T) {
	ctl, store, _ := newTestController(t)

	first := roundTrip(t, ctl, "first topic")
	send, err := ctl.SendMessage("slow question")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	// User switches away before the reply lands.
	ctl.NewSession()
	other := roundTrip(t, ctl, "second topic")

	ctl.AcceptReply(send.Complete(context.Background()))

	firstMsgs := store.Messages(first.SessionID)
	last := firstMsgs[len(firstMsgs)-1]
	if last.Sender != models.SenderAssistant || !strings.Contains(last.Content, "slow question") {
		t.Fatalf("late reply mis-attributed; first session ends with %+v", last)
	}
	for _, msg := range store.Messages(other.SessionID) {
		if strings.Contains(msg.Content, "slow question") {
			t.Fatal("late reply leaked into the newly active session")
		}
	}
}

func TestSelectSessionLoadsHistoryInOrder(t *testing.T) {
	ctl, _, _ := newTestController(t)

	a := roundTrip(t, ctl, "session a")
	ctl.NewSession()
	roundTrip(t, ctl, "session b")

	history := ctl.SelectSession(a.SessionID)
	if ctl.ActiveSession() != a.SessionID {
		t.Fatal("SelectSession did not switch the active session")
	}
	if len(history) != 2 || history[0].Sender != models.SenderUser || history[1].Sender != models.SenderAssistant {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestDeleteActivePromotesSameRow(t *testing.T) {
	ctl, _, _ := newTestController(t)

	// Three sessions; listing is newest first, so "third" sits at row 0.
	roundTrip(t, ctl, "first")
	ctl.NewSession()
	second := roundTrip(t, ctl, "second")
	ctl.NewSession()
	third := roundTrip(t, ctl, "third")

	if ctl.ActiveIndex() != 0 {
		t.Fatalf("expected active at row 0, got %d", ctl.ActiveIndex())
	}

	deletion, ok := ctl.DeleteSession(third.SessionID)
	if !ok {
		t.Fatal("delete failed")
	}
	if deletion.Next == nil || deletion.Next.ID != second.SessionID {
		t.Fatalf("expected former row 1 promoted to row 0, got %+v", deletion.Next)
	}
	if ctl.ActiveSession() != second.SessionID || ctl.ActiveIndex() != 0 {
		t.Fatal("selection not moved to the promoted session")
	}
	if len(deletion.Messages) != 2 {
		t.Fatalf("promoted session history not loaded: %+v", deletion.Messages)
	}
}

func TestDeleteLastRowSelectsNewLastRow(t *testing.T) {
	ctl, _, _ := newTestController(t)

	oldest := roundTrip(t, ctl, "oldest")
	ctl.NewSession()
	middle := roundTrip(t, ctl, "middle")
	ctl.NewSession()
	roundTrip(t, ctl, "newest")

	// Activate the last row, then delete it.
	ctl.SelectSession(oldest.SessionID)
	deletion, ok := ctl.DeleteSession(oldest.SessionID)
	if !ok {
		t.Fatal("delete failed")
	}
	if deletion.Next == nil || deletion.Next.ID != middle.SessionID {
		t.Fatalf("expected the new last row selected, got %+v", deletion.Next)
	}
}

func TestDeleteToEmptyReturnsToNewChatState(t *testing.T) {
	ctl, _, _ := newTestController(t)

	only := roundTrip(t, ctl, "only one")
	deletion, ok := ctl.DeleteSession(only.SessionID)
	if !ok {
		t.Fatal("delete failed")
	}
	if deletion.Next != nil {
		t.Fatalf("no session should be promoted, got %+v", deletion.Next)
	}
	if ctl.ActiveSession() != 0 || len(ctl.Listing()) != 0 {
		t.Fatal("controller did not return to the session-less state")
	}
}

func TestDeleteInactiveKeepsSelection(t *testing.T) {
	ctl, _, _ := newTestController(t)

	old := roundTrip(t, ctl, "old")
	ctl.NewSession()
	current := roundTrip(t, ctl, "current")

	deletion, ok := ctl.DeleteSession(old.SessionID)
	if !ok {
		t.Fatal("delete failed")
	}
	if deletion.Next != nil {
		t.Fatal("deleting an inactive session must not move the selection")
	}
	if ctl.ActiveSession() != current.SessionID {
		t.Fatal("active session changed unexpectedly")
	}
}

func TestSearchFiltersListingWithoutChangingActive(t *testing.T) {
	ctl, _, _ := newTestController(t)

	gravity := roundTrip(t, ctl, "Explain gravity to me")
	ctl.NewSession()
	cooking := roundTrip(t, ctl, "Best pasta recipe")

	got := ctl.ListSessions("gravity")
	if len(got) != 1 || got[0].ID != gravity.SessionID {
		t.Fatalf("unexpected search result: %+v", got)
	}
	if ctl.ActiveSession() != cooking.SessionID {
		t.Fatal("search changed the active session")
	}
	// Active session is filtered out of the listing.
	if ctl.ActiveIndex() != -1 {
		t.Fatalf("expected active index -1 under filter, got %d", ctl.ActiveIndex())
	}

	if got := ctl.ListSessions(""); len(got) != 2 {
		t.Fatalf("empty keyword must restore the full listing, got %d", len(got))
	}
	if ctl.ActiveIndex() != 0 {
		t.Fatalf("active row lost after restore: %d", ctl.ActiveIndex())
	}
}

func TestNewSessionClearsSearchFilter(t *testing.T) {
	ctl, _, _ := newTestController(t)

	roundTrip(t, ctl, "alpha")
	ctl.NewSession()
	roundTrip(t, ctl, "beta")

	ctl.ListSessions("alpha")
	listing := ctl.NewSession()
	if ctl.Keyword() != "" || len(listing) != 2 {
		t.Fatalf("NewSession must clear the filter, keyword=%q listing=%d",
			ctl.Keyword(), len(listing))
	}
	if ctl.ActiveSession() != 0 {
		t.Fatal("NewSession must clear the active session")
	}
}

func TestDegradedStoreStillChats(t *testing.T) {
	store := db.Open(filepath.Join(t.TempDir(), "missing", "x.db"), zap.NewNop())
	gw := &echoCompleter{reply: "still alive"}
	ctl := NewController(store, gw, zap.NewNop())

	if got := ctl.ListSessions(""); len(got) != 0 {
		t.Fatalf("degraded listing should be empty, got %+v", got)
	}

	send, err := ctl.SendMessage("hello")
	if err != nil {
		t.Fatalf("SendMessage must keep working without persistence: %v", err)
	}
	if send.SessionCreated || send.SessionID != 0 {
		t.Fatalf("no session can exist without a store, got %+v", send)
	}
	reply := send.Complete(context.Background())
	if reply.Content != "still alive" {
		t.Fatalf("completion round trip broken: %+v", reply)
	}
	// Accepting the reply is a no-op, not a failure.
	ctl.AcceptReply(reply)
}

func TestCompletionFailureStringIsSavedAsReply(t *testing.T) {
	ctl, store, gw := newTestController(t)
	gw.reply = "Error: 429 quota exceeded"

	send := roundTrip(t, ctl, "hi")

	messages := store.Messages(send.SessionID)
	last := messages[len(messages)-1]
	if last.Sender != models.SenderAssistant || last.Content != "Error: 429 quota exceeded" {
		t.Fatalf("error string not stored as the assistant message: %+v", last)
	}
}
