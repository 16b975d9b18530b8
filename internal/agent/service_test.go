package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/karsk/voicectl/internal/booking"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/skills"
	"github.com/karsk/voicectl/internal/testutil/testlog"
)

var agentTestSlots = []string{
	"10:30am - 11:30am, 26th January",
	"2:15pm - 3:15pm, 26th January",
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := booking.Open(filepath.Join(t.TempDir(), "voiced.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	registry := skills.NewRegistry()
	if err := registry.Register(skills.NewBookingSkill(store, agentTestSlots)); err != nil {
		t.Fatalf("register booking skill: %v", err)
	}
	if err := registry.Register(skills.NewSessionSkill("")); err != nil {
		t.Fatalf("register session skill: %v", err)
	}

	cfg := config.DefaultAgentConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	return NewService(cfg, registry, store)
}

func TestInvokePublishesToolCallAndRecordsTurns(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	_, events := svc.Events().Subscribe()
	sess := svc.Sessions().Create()

	res, err := svc.Sessions().Invoke(context.Background(), sess.ID(), "skill.booking", "identify",
		map[string]string{"contact_number": "555-0101"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Status != "ok" {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}

	evt := <-events
	if evt.Type != EventToolCall || evt.Tool != "skill.booking/identify" || evt.Session != sess.ID() {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.TimestampMS == 0 {
		t.Fatalf("event timestamp not set")
	}

	turns := sess.History()
	if len(turns) != 2 {
		t.Fatalf("turns=%d want 2", len(turns))
	}
	if turns[0].Role != "caller" || turns[0].Text != "identify contact_number=555-0101" {
		t.Fatalf("caller turn=%+v", turns[0])
	}
	if turns[1].Role != "agent" || !strings.Contains(turns[1].Text, "555-0101") {
		t.Fatalf("agent turn=%+v", turns[1])
	}
}

func TestInvokeUnknownSessionAndSkill(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)

	_, err := svc.Sessions().Invoke(context.Background(), "missing", "skill.booking", "slots", nil)
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}

	sess := svc.Sessions().Create()
	_, err = svc.Sessions().Invoke(context.Background(), sess.ID(), "skill.missing", "slots", nil)
	if !errors.Is(err, ErrUnknownSkill) {
		t.Fatalf("expected ErrUnknownSkill, got %v", err)
	}
}

func TestEndPublishesSummaryOnceAndSealsSession(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	_, events := svc.Events().Subscribe()
	sess := svc.Sessions().Create()
	ctx := context.Background()

	steps := []struct {
		skill string
		op    string
		args  map[string]string
	}{
		{"skill.booking", "identify", map[string]string{"contact_number": "555-0101"}},
		{"skill.booking", "book", map[string]string{"slot": agentTestSlots[0], "details": "checkup"}},
		{"skill.session", "end", nil},
	}
	for _, step := range steps {
		if _, err := svc.Sessions().Invoke(ctx, sess.ID(), step.skill, step.op, step.args); err != nil {
			t.Fatalf("%s/%s: %v", step.skill, step.op, err)
		}
	}

	var got []Event
	for i := 0; i < 4; i++ {
		got = append(got, <-events)
	}
	for i := 0; i < 3; i++ {
		if got[i].Type != EventToolCall {
			t.Fatalf("event %d type=%q want tool_call", i, got[i].Type)
		}
	}
	summary := got[3]
	if summary.Type != EventConversationSummary {
		t.Fatalf("last event type=%q want conversation_summary", summary.Type)
	}
	if summary.UserContact != "555-0101" {
		t.Fatalf("user_contact=%q", summary.UserContact)
	}
	wantAppt := agentTestSlots[0] + " - checkup (confirmed)"
	if len(summary.Appointments) != 1 || summary.Appointments[0] != wantAppt {
		t.Fatalf("appointments=%v want [%q]", summary.Appointments, wantAppt)
	}
	if !strings.Contains(summary.Summary, "caller: end") {
		t.Fatalf("summary missing closing turn: %q", summary.Summary)
	}
	if strings.Contains(summary.Summary, skills.DefaultGoodbye) {
		t.Fatalf("summary must not include the goodbye line: %q", summary.Summary)
	}

	if _, err := svc.Sessions().Invoke(ctx, sess.ID(), "skill.booking", "slots", nil); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

func TestConversationSummaryFallbackAndTail(t *testing.T) {
	testlog.Start(t)
	if got := conversationSummary(nil); got != "No conversation history available." {
		t.Fatalf("fallback=%q", got)
	}

	turns := make([]skills.Turn, 0, 12)
	for i := 0; i < 12; i++ {
		turns = append(turns, skills.Turn{Role: "caller", Text: string(rune('a' + i))})
	}
	got := conversationSummary(turns)
	lines := strings.Split(got, "\n")
	if len(lines) != 10 {
		t.Fatalf("summary lines=%d want 10", len(lines))
	}
	if lines[0] != "caller: c" || lines[9] != "caller: l" {
		t.Fatalf("summary tail wrong: first=%q last=%q", lines[0], lines[9])
	}
}

func TestEventHubDropsSlowSubscriber(t *testing.T) {
	testlog.Start(t)
	hub := NewEventHub()
	_, ch := hub.Subscribe()

	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish(Event{Type: EventToolCall, Tool: "skill.booking/slots"})
	}
	if n := hub.SubscriberCount(); n != 0 {
		t.Fatalf("subscribers=%d want 0 after overflow", n)
	}

	received := 0
	for range ch {
		received++
	}
	if received != subscriberBuffer {
		t.Fatalf("received=%d want %d buffered events before drop", received, subscriberBuffer)
	}
	if len(hub.Recent()) != subscriberBuffer+1 {
		t.Fatalf("recent=%d want %d", len(hub.Recent()), subscriberBuffer+1)
	}
}

func TestReadinessProbes(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Ready(ctx); err != nil {
		t.Fatalf("no probes must pass: %v", err)
	}

	svc.AddReadiness("store", func(ctx context.Context) error { return nil })
	boom := errors.New("assets missing")
	svc.AddReadiness("assets", func(ctx context.Context) error { return boom })

	err := svc.Ready(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected probe error, got %v", err)
	}
	if !strings.Contains(err.Error(), "readiness assets") {
		t.Fatalf("error must name the probe: %v", err)
	}
}

func TestStatusSnapshot(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	svc.Sessions().Create()

	status := svc.Status()
	if status.WorkerID != svc.Config().WorkerID {
		t.Fatalf("worker_id=%q", status.WorkerID)
	}
	if status.Skills != 2 || status.Sessions != 1 {
		t.Fatalf("skills=%d sessions=%d", status.Skills, status.Sessions)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	if err := svc.bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.serve(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop on cancel")
	}
}

func TestBootstrapRejectsBadHeartbeat(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	svc.cfg.HeartbeatInterval = 0
	if err := svc.bootstrap(context.Background()); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected ErrInvalidHeartbeatInterval, got %v", err)
	}
}

func TestBootstrapFailsOnReadinessProbe(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	boom := errors.New("assets incomplete")
	svc.AddReadiness("assets", func(ctx context.Context) error { return boom })

	if err := svc.bootstrap(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected probe failure, got %v", err)
	}
}
