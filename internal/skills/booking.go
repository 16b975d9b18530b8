package skills

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/booking"
)

var (
	ErrSkillFailed = errors.New("skill operation failed")
	ErrInvalidArgs = errors.New("invalid skill arguments")
)

// BookingSkill exposes appointment operations over the booking store.
// The caller must identify with a contact number before any operation
// that reads or writes appointments.
type BookingSkill struct {
	store *booking.Store
	slots []string
}

// NewBookingSkill wires a booking skill to a store and a slot catalog.
func NewBookingSkill(store *booking.Store, slots []string) BookingSkill {
	catalog := make([]string, len(slots))
	copy(catalog, slots)
	return BookingSkill{
		store: store,
		slots: catalog,
	}
}

// Metadata provides stable identity and capability description.
func (s BookingSkill) Metadata() SkillMetadata {
	return SkillMetadata{
		ID:          "skill.booking",
		Name:        "Appointment booking",
		Description: "Books, lists, cancels, and reschedules appointment slots",
	}
}

// Operations lists the booking operation catalog.
func (s BookingSkill) Operations() []OperationSpec {
	return []OperationSpec{
		{Name: "identify", Description: "record the caller's contact number", Idempotent: true},
		{Name: "slots", Description: "list slots still open for booking", Idempotent: true},
		{Name: "book", Description: "book an open slot", Idempotent: false},
		{Name: "appointments", Description: "list the caller's appointments", Idempotent: true},
		{Name: "cancel", Description: "cancel a confirmed appointment", Idempotent: false},
		{Name: "move", Description: "reschedule a confirmed appointment", Idempotent: false},
	}
}

// Invoke dispatches one booking operation against the session's caller.
func (s BookingSkill) Invoke(ctx context.Context, sess *Session, op string, args map[string]string) (SkillResult, error) {
	act := strings.TrimSpace(op)
	log.Debug().Msgf("skills.BookingSkill.Invoke op=%q session=%q", act, sess.ID())

	switch act {
	case "identify":
		return s.identify(sess, args)
	case "slots":
		return s.openSlots(ctx)
	case "book":
		return s.book(ctx, sess, args)
	case "appointments":
		return s.appointments(ctx, sess)
	case "cancel":
		return s.cancel(ctx, sess, args)
	case "move":
		return s.move(ctx, sess, args)
	default:
		log.Warn().Msgf("skills.BookingSkill.Invoke unknown op=%q", act)
		return SkillResult{
			Status:   "error",
			Response: fmt.Sprintf("unknown operation: %s", act),
			ExitCode: 64,
		}, ErrUnknownOperation
	}
}

func (s BookingSkill) identify(sess *Session, args map[string]string) (SkillResult, error) {
	contact := argValue(args, "contact_number")
	if contact == "" {
		return usageResult("contact_number is required"), ErrInvalidArgs
	}

	sess.Identify(contact, argValue(args, "user_name"))
	log.Info().Msgf("skills.BookingSkill.identify session=%q contact=%q", sess.ID(), contact)
	return okResult(
		fmt.Sprintf("Thank you! I have your contact number %s. How can I help you today?", contact),
		map[string]string{"contact_number": contact},
	), nil
}

func (s BookingSkill) openSlots(ctx context.Context) (SkillResult, error) {
	available := make([]string, 0, len(s.slots))
	for _, slot := range s.slots {
		open, err := s.store.SlotAvailable(ctx, slot)
		if err != nil {
			log.Error().Msgf("skills.BookingSkill.openSlots slot=%q err=%v", slot, err)
			return systemErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
		}
		if open {
			available = append(available, slot)
		}
	}

	if len(available) == 0 {
		return okResult("I'm sorry, there are no available slots at the moment.", nil), nil
	}
	return okResult(
		"Available slots are: "+strings.Join(available, "; ")+".",
		map[string]string{"count": strconv.Itoa(len(available))},
	), nil
}

func (s BookingSkill) book(ctx context.Context, sess *Session, args map[string]string) (SkillResult, error) {
	if !sess.Identified() {
		return refusalResult("I need your contact number before booking. Please provide it using the identify operation."), nil
	}
	slot := argValue(args, "slot")
	if slot == "" {
		return usageResult("slot is required"), ErrInvalidArgs
	}
	details := argValue(args, "details")
	contact := sess.Contact()

	existing, err := s.store.AppointmentsByContact(ctx, contact)
	if err != nil {
		log.Error().Msgf("skills.BookingSkill.book list contact=%q err=%v", contact, err)
		return bookErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}
	for _, appt := range existing {
		if appt.SlotTime == slot && appt.Status == booking.StatusConfirmed {
			return refusalResult(fmt.Sprintf("You already have an appointment at %s.", slot)), nil
		}
	}

	open, err := s.store.SlotAvailable(ctx, slot)
	if err != nil {
		log.Error().Msgf("skills.BookingSkill.book availability slot=%q err=%v", slot, err)
		return bookErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}
	if !open {
		return refusalResult(slotTakenMessage(slot)), nil
	}

	userName := sess.UserName()
	if userName == "" {
		userName = "Unknown"
	}
	appt, err := s.store.CreateAppointment(ctx, contact, userName, slot, details)
	if err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			return refusalResult(slotTakenMessage(slot)), nil
		}
		log.Error().Msgf("skills.BookingSkill.book create slot=%q err=%v", slot, err)
		return bookErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}

	log.Info().Msgf("skills.BookingSkill.book ok session=%q slot=%q id=%q", sess.ID(), slot, appt.ID)
	return okResult(
		fmt.Sprintf("Appointment booked successfully for %s. Your appointment details: %s.", slot, details),
		map[string]string{"appointment_id": appt.ID, "slot": slot, "details": details},
	), nil
}

func (s BookingSkill) appointments(ctx context.Context, sess *Session) (SkillResult, error) {
	if !sess.Identified() {
		return refusalResult("Please provide your contact number first."), nil
	}

	list, err := s.store.AppointmentsByContact(ctx, sess.Contact())
	if err != nil {
		log.Error().Msgf("skills.BookingSkill.appointments contact=%q err=%v", sess.Contact(), err)
		return systemErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}
	if len(list) == 0 {
		return okResult("You have no appointments on record.", nil), nil
	}

	items := make([]string, 0, len(list))
	for _, appt := range list {
		items = append(items, fmt.Sprintf("%s (%s) - %s", appt.SlotTime, appt.Details, appt.Status))
	}
	return okResult(
		"Here are your appointments: "+strings.Join(items, ", "),
		map[string]string{"count": strconv.Itoa(len(list))},
	), nil
}

func (s BookingSkill) cancel(ctx context.Context, sess *Session, args map[string]string) (SkillResult, error) {
	if !sess.Identified() {
		return refusalResult("Please provide your phone number."), nil
	}
	slot := argValue(args, "slot")
	if slot == "" {
		return usageResult("slot is required"), ErrInvalidArgs
	}

	_, err := s.store.CancelAppointment(ctx, sess.Contact(), slot)
	if errors.Is(err, booking.ErrNotFound) {
		return refusalResult(fmt.Sprintf("I couldn't find an active appointment at %s.", slot)), nil
	}
	if err != nil {
		log.Error().Msgf("skills.BookingSkill.cancel slot=%q err=%v", slot, err)
		return systemErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}

	log.Info().Msgf("skills.BookingSkill.cancel ok session=%q slot=%q", sess.ID(), slot)
	return okResult(
		fmt.Sprintf("Appointment at %s has been cancelled.", slot),
		map[string]string{"slot": slot},
	), nil
}

func (s BookingSkill) move(ctx context.Context, sess *Session, args map[string]string) (SkillResult, error) {
	if !sess.Identified() {
		return refusalResult("Please identify yourself first using the identify operation."), nil
	}
	oldSlot := argValue(args, "old_slot")
	newSlot := argValue(args, "new_slot")
	if oldSlot == "" || newSlot == "" {
		return usageResult("old_slot and new_slot are required"), ErrInvalidArgs
	}
	contact := sess.Contact()

	if _, err := s.store.ConfirmedBySlot(ctx, contact, oldSlot); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return refusalResult(fmt.Sprintf("Could not find appointment at %s.", oldSlot)), nil
		}
		log.Error().Msgf("skills.BookingSkill.move find slot=%q err=%v", oldSlot, err)
		return systemErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}

	// Availability is checked before the move so rescheduling onto the
	// caller's own current slot reports the slot as booked.
	open, err := s.store.SlotAvailable(ctx, newSlot)
	if err != nil {
		log.Error().Msgf("skills.BookingSkill.move availability slot=%q err=%v", newSlot, err)
		return systemErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}
	if !open {
		return refusalResult(slotTakenMessage(newSlot)), nil
	}

	if _, err := s.store.MoveAppointment(ctx, contact, oldSlot, newSlot); err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			return refusalResult(slotTakenMessage(newSlot)), nil
		}
		log.Error().Msgf("skills.BookingSkill.move old=%q new=%q err=%v", oldSlot, newSlot, err)
		return systemErrorResult(), fmt.Errorf("%w: %v", ErrSkillFailed, err)
	}

	log.Info().Msgf("skills.BookingSkill.move ok session=%q old=%q new=%q", sess.ID(), oldSlot, newSlot)
	return okResult(
		fmt.Sprintf("Appointment changed from %s to %s.", oldSlot, newSlot),
		map[string]string{"old_slot": oldSlot, "new_slot": newSlot},
	), nil
}

func slotTakenMessage(slot string) string {
	return fmt.Sprintf("I'm sorry, but the slot %s is already booked by another customer. Please choose a different time slot.", slot)
}

func bookErrorResult() SkillResult {
	return SkillResult{
		Status:   "error",
		Response: "I'm sorry, I couldn't book the appointment due to a system error.",
		ExitCode: 1,
	}
}

func systemErrorResult() SkillResult {
	return SkillResult{
		Status:   "error",
		Response: "I'm sorry, I couldn't complete that request due to a system error.",
		ExitCode: 1,
	}
}

func okResult(response string, data map[string]string) SkillResult {
	return SkillResult{
		Status:   "ok",
		Response: response,
		Data:     data,
		ExitCode: 0,
	}
}

func refusalResult(response string) SkillResult {
	return SkillResult{
		Status:   "error",
		Response: response,
		ExitCode: 1,
	}
}

func usageResult(response string) SkillResult {
	return SkillResult{
		Status:   "error",
		Response: response,
		ExitCode: 64,
	}
}

func argValue(args map[string]string, key string) string {
	if args == nil {
		return ""
	}
	return strings.TrimSpace(args[key])
}
