package skills

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karsk/voicectl/internal/booking"
	"github.com/karsk/voicectl/internal/testutil/testlog"
)

var testSlots = []string{
	"10:30am - 11:30am, 26th January",
	"2:15pm - 3:15pm, 26th January",
	"9:00am - 10:00am, 27th January",
}

func newTestStore(t *testing.T) *booking.Store {
	t.Helper()
	store, err := booking.Open(filepath.Join(t.TempDir(), "voiced.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func identify(t *testing.T, skill BookingSkill, sess *Session, contact string) {
	t.Helper()
	res, err := skill.Invoke(context.Background(), sess, "identify", map[string]string{"contact_number": contact})
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if res.Status != "ok" {
		t.Fatalf("identify status=%q response=%q", res.Status, res.Response)
	}
}

func TestIdentifyRecordsContact(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")

	res, err := skill.Invoke(context.Background(), sess, "identify", map[string]string{
		"contact_number": "555-0101",
		"user_name":      "Jordan",
	})
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	want := "Thank you! I have your contact number 555-0101. How can I help you today?"
	if res.Response != want {
		t.Fatalf("response=%q want=%q", res.Response, want)
	}
	if !sess.Identified() || sess.Contact() != "555-0101" || sess.UserName() != "Jordan" {
		t.Fatalf("session not updated: contact=%q name=%q", sess.Contact(), sess.UserName())
	}
}

func TestIdentifyRequiresContactNumber(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")

	res, err := skill.Invoke(context.Background(), sess, "identify", nil)
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
	if res.ExitCode != 64 {
		t.Fatalf("exit=%d want 64", res.ExitCode)
	}
	if sess.Identified() {
		t.Fatalf("empty contact must not identify the session")
	}
}

func TestBookRequiresIdentification(t *testing.T) {
	testlog.Start(t)
	store := newTestStore(t)
	skill := NewBookingSkill(store, testSlots)
	sess := NewSession("sess-1")

	res, err := skill.Invoke(context.Background(), sess, "book", map[string]string{"slot": testSlots[0]})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	want := "I need your contact number before booking. Please provide it using the identify operation."
	if res.Status != "error" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}

	open, err := store.SlotAvailable(context.Background(), testSlots[0])
	if err != nil || !open {
		t.Fatalf("slot must stay open: open=%v err=%v", open, err)
	}
}

func TestBookThenSlotsFiltersTaken(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	res, err := skill.Invoke(context.Background(), sess, "book", map[string]string{
		"slot":    testSlots[0],
		"details": "checkup",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	want := "Appointment booked successfully for " + testSlots[0] + ". Your appointment details: checkup."
	if res.Response != want {
		t.Fatalf("response=%q want=%q", res.Response, want)
	}
	if res.Data["appointment_id"] == "" {
		t.Fatalf("expected appointment_id in data, got %v", res.Data)
	}

	slots, err := skill.Invoke(context.Background(), sess, "slots", nil)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if strings.Contains(slots.Response, testSlots[0]) {
		t.Fatalf("booked slot still listed: %q", slots.Response)
	}
	wantSlots := "Available slots are: " + testSlots[1] + "; " + testSlots[2] + "."
	if slots.Response != wantSlots {
		t.Fatalf("slots response=%q want=%q", slots.Response, wantSlots)
	}
}

func TestBookOwnDuplicateSlot(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	if _, err := skill.Invoke(context.Background(), sess, "book", map[string]string{"slot": testSlots[0]}); err != nil {
		t.Fatalf("first book: %v", err)
	}
	res, err := skill.Invoke(context.Background(), sess, "book", map[string]string{"slot": testSlots[0]})
	if err != nil {
		t.Fatalf("second book: %v", err)
	}
	want := "You already have an appointment at " + testSlots[0] + "."
	if res.Status != "error" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}
}

func TestBookSlotTakenByOtherCaller(t *testing.T) {
	testlog.Start(t)
	store := newTestStore(t)
	skill := NewBookingSkill(store, testSlots)

	first := NewSession("sess-1")
	identify(t, skill, first, "555-0101")
	if _, err := skill.Invoke(context.Background(), first, "book", map[string]string{"slot": testSlots[0]}); err != nil {
		t.Fatalf("first book: %v", err)
	}

	second := NewSession("sess-2")
	identify(t, skill, second, "555-0202")
	res, err := skill.Invoke(context.Background(), second, "book", map[string]string{"slot": testSlots[0]})
	if err != nil {
		t.Fatalf("second book: %v", err)
	}
	want := "I'm sorry, but the slot " + testSlots[0] + " is already booked by another customer. Please choose a different time slot."
	if res.Status != "error" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}
}

func TestAppointmentsListTracksStatus(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	empty, err := skill.Invoke(context.Background(), sess, "appointments", nil)
	if err != nil {
		t.Fatalf("appointments: %v", err)
	}
	if empty.Response != "You have no appointments on record." {
		t.Fatalf("empty response=%q", empty.Response)
	}

	if _, err := skill.Invoke(context.Background(), sess, "book", map[string]string{
		"slot":    testSlots[0],
		"details": "checkup",
	}); err != nil {
		t.Fatalf("book: %v", err)
	}

	res, err := skill.Invoke(context.Background(), sess, "appointments", nil)
	if err != nil {
		t.Fatalf("appointments: %v", err)
	}
	want := "Here are your appointments: " + testSlots[0] + " (checkup) - confirmed"
	if res.Response != want {
		t.Fatalf("response=%q want=%q", res.Response, want)
	}
}

func TestCancelAppointment(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	if _, err := skill.Invoke(context.Background(), sess, "book", map[string]string{"slot": testSlots[0]}); err != nil {
		t.Fatalf("book: %v", err)
	}
	res, err := skill.Invoke(context.Background(), sess, "cancel", map[string]string{"slot": testSlots[0]})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	want := "Appointment at " + testSlots[0] + " has been cancelled."
	if res.Status != "ok" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}

	miss, err := skill.Invoke(context.Background(), sess, "cancel", map[string]string{"slot": testSlots[0]})
	if err != nil {
		t.Fatalf("cancel miss: %v", err)
	}
	wantMiss := "I couldn't find an active appointment at " + testSlots[0] + "."
	if miss.Status != "error" || miss.Response != wantMiss {
		t.Fatalf("status=%q response=%q", miss.Status, miss.Response)
	}
}

func TestMoveAppointment(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	if _, err := skill.Invoke(context.Background(), sess, "book", map[string]string{"slot": testSlots[0]}); err != nil {
		t.Fatalf("book: %v", err)
	}
	res, err := skill.Invoke(context.Background(), sess, "move", map[string]string{
		"old_slot": testSlots[0],
		"new_slot": testSlots[1],
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := "Appointment changed from " + testSlots[0] + " to " + testSlots[1] + "."
	if res.Status != "ok" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}
}

func TestMoveToOwnSlotReportsTaken(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	if _, err := skill.Invoke(context.Background(), sess, "book", map[string]string{"slot": testSlots[0]}); err != nil {
		t.Fatalf("book: %v", err)
	}
	res, err := skill.Invoke(context.Background(), sess, "move", map[string]string{
		"old_slot": testSlots[0],
		"new_slot": testSlots[0],
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := "I'm sorry, but the slot " + testSlots[0] + " is already booked by another customer. Please choose a different time slot."
	if res.Status != "error" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}
}

func TestMoveUnknownAppointment(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")
	identify(t, skill, sess, "555-0101")

	res, err := skill.Invoke(context.Background(), sess, "move", map[string]string{
		"old_slot": testSlots[0],
		"new_slot": testSlots[1],
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := "Could not find appointment at " + testSlots[0] + "."
	if res.Status != "error" || res.Response != want {
		t.Fatalf("status=%q response=%q", res.Status, res.Response)
	}
}

func TestUnknownOperation(t *testing.T) {
	testlog.Start(t)
	skill := NewBookingSkill(newTestStore(t), testSlots)
	sess := NewSession("sess-1")

	res, err := skill.Invoke(context.Background(), sess, "reboot", nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
	if res.ExitCode != 64 || res.Status != "error" {
		t.Fatalf("exit=%d status=%q", res.ExitCode, res.Status)
	}
}

func TestSessionSkillEndAndStatus(t *testing.T) {
	testlog.Start(t)
	skill := NewSessionSkill("")
	sess := NewSession("sess-1")
	sess.AppendTurn("user", "hello")

	res, err := skill.Invoke(context.Background(), sess, "end", nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if res.Response != DefaultGoodbye {
		t.Fatalf("response=%q want=%q", res.Response, DefaultGoodbye)
	}
	if !sess.Ended() {
		t.Fatalf("session must be marked ended")
	}

	status, err := skill.Invoke(context.Background(), sess, "status", nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Data["ended"] != "true" || status.Data["turns"] != "1" {
		t.Fatalf("status data=%v", status.Data)
	}
}
