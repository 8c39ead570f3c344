package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trimly/internal/availability"
	"trimly/internal/model"
	"trimly/internal/upstream"
)

// Flow validation errors, surfaced to the client for redisplay.
var (
	ErrUnknownService       = errors.New("unknown service")
	ErrUnknownResource      = errors.New("unknown resource")
	ErrSlotUnavailable      = errors.New("slot not available")
	ErrOutsideBookingWindow = errors.New("outside booking window")
)

// Platform is the slice of the upstream API the flow needs.
type Platform interface {
	FetchServices(ctx context.Context, barbershopID int64) ([]model.Service, error)
	FetchResources(ctx context.Context, barbershopID int64) ([]model.Resource, error)
	FetchOperatingHours(ctx context.Context, barbershopID int64) (*model.OperatingHours, error)
	FetchAppointments(ctx context.Context, barbershopID int64, selector model.ResourceSelector, date time.Time) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, req upstream.CreateAppointmentRequest) (int64, error)
}

// BlockSource supplies the shop's blackout records.
type BlockSource interface {
	ListForShop(ctx context.Context, barbershopID int64) ([]model.Block, error)
}

// ResourcePicker resolves an Any selection to a concrete resource.
// The policy is a collaborator decision; FirstFreePicker is the default.
type ResourcePicker interface {
	Pick(in availability.Input, slot model.TimeOfDay) (int64, bool)
}

// FirstFreePicker picks the first listed resource free at the slot.
type FirstFreePicker struct {
	Calc *availability.Calculator
}

// Pick returns the first free resource id, or false when none is free.
func (p FirstFreePicker) Pick(in availability.Input, slot model.TimeOfDay) (int64, bool) {
	for _, resourceID := range in.Resources {
		if p.Calc.ResourceFreeAt(in, resourceID, slot) {
			return resourceID, true
		}
	}
	return 0, false
}

// Rules bound how far ahead a client may book.
type Rules struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration
}

// Result is the outcome of a confirmed booking.
type Result struct {
	AppointmentID int64           `json:"appointment_id"`
	ResourceID    int64           `json:"resource_id"`
	Date          string          `json:"date"`
	Slot          model.TimeOfDay `json:"slot"`
	Price         int64           `json:"price"`
}

// Flow sequences the booking steps, checking availability at each one
// and handing the final draft to the platform on confirmation.
type Flow struct {
	platform Platform
	blocks   BlockSource
	calc     *availability.Calculator
	fsm      *FSM
	sessions *SessionStore
	picker   ResourcePicker
	rules    Rules
	now      func() time.Time
	log      zerolog.Logger
}

// NewFlow creates a booking flow controller.
func NewFlow(platform Platform, blockSource BlockSource, calc *availability.Calculator, sessions *SessionStore, rules Rules, log zerolog.Logger) *Flow {
	return &Flow{
		platform: platform,
		blocks:   blockSource,
		calc:     calc,
		fsm:      NewFSM(),
		sessions: sessions,
		picker:   FirstFreePicker{Calc: calc},
		rules:    rules,
		now:      time.Now,
		log:      log,
	}
}

// WithPicker overrides the Any-resource resolution policy.
func (f *Flow) WithPicker(picker ResourcePicker) *Flow {
	f.picker = picker
	return f
}

// WithClock overrides the wall clock, for tests.
func (f *Flow) WithClock(now func() time.Time) *Flow {
	f.now = now
	return f
}

// Start opens a new session at the service-selection step.
func (f *Flow) Start(barbershopID, clientID int64) *Session {
	return f.sessions.Create(barbershopID, clientID)
}

// Get returns a live session by id.
func (f *Flow) Get(sessionID string) (*Session, error) {
	return f.sessions.Get(sessionID)
}

// SelectService records the chosen service. Reselecting a service later
// in the flow is allowed and resets the resource and date/time choices,
// since price and availability depend on the service.
func (f *Flow) SelectService(ctx context.Context, sessionID string, serviceID int64) error {
	session, err := f.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State == StateConfirmed {
		return f.outOfOrder(session, "select_service")
	}

	service, err := f.serviceByID(ctx, session.BarbershopID, serviceID)
	if err != nil {
		return err
	}

	session.Draft = Draft{
		ServiceID:   service.ID,
		ServiceName: service.Name,
		Duration:    service.DurationMinutes,
		Price:       service.BasePrice,
		HasService:  true,
	}
	session.LastError = ""
	session.State = StateSelectingResource
	session.touch()
	return nil
}

// SelectResource records the resource choice; Any is a valid choice.
func (f *Flow) SelectResource(ctx context.Context, sessionID string, selector model.ResourceSelector) error {
	session, err := f.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateSelectingResource || !session.Draft.HasService {
		return f.outOfOrder(session, "select_resource")
	}

	if id, ok := selector.ResourceID(); ok {
		resources, err := f.platform.FetchResources(ctx, session.BarbershopID)
		if err != nil {
			return err
		}
		found := false
		for _, r := range resources {
			if r.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %d", ErrUnknownResource, id)
		}
	}

	session.Draft.Selector = selector
	session.Draft.HasResource = true
	session.Draft.HasDateTime = false
	session.State = StateSelectingDateTime
	session.touch()
	return nil
}

// SelectDateTime records the date and start time after re-checking that
// the slot is actually bookable and inside the advance-booking window.
func (f *Flow) SelectDateTime(ctx context.Context, sessionID string, date time.Time, slot model.TimeOfDay) error {
	session, err := f.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateSelectingDateTime || !session.Draft.HasResource {
		return f.outOfOrder(session, "select_datetime")
	}

	startAt := slot.On(date)
	now := f.now()
	if startAt.Before(now.Add(f.rules.MinAdvance)) {
		return fmt.Errorf("%w: starts too soon", ErrOutsideBookingWindow)
	}
	if f.rules.MaxAdvance > 0 && startAt.After(now.Add(f.rules.MaxAdvance)) {
		return fmt.Errorf("%w: too far ahead", ErrOutsideBookingWindow)
	}

	in, err := f.availabilityInput(ctx, session, date)
	if err != nil {
		return err
	}
	slots, err := f.calc.AvailableSlots(in)
	if err != nil {
		return err
	}
	found := false
	for _, s := range slots {
		if s == slot {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s on %s", ErrSlotUnavailable, slot, date.Format(model.DateLayout))
	}

	if id, ok := session.Draft.Selector.ResourceID(); ok {
		service, err := f.serviceByID(ctx, session.BarbershopID, session.Draft.ServiceID)
		if err != nil {
			return err
		}
		session.Draft.ResourceID = id
		session.Draft.Price = service.PriceFor(id)
	}

	session.Draft.Date = model.DateOnly(date)
	session.Draft.Slot = slot
	session.Draft.HasDateTime = true
	session.State = StateConfirming
	session.touch()
	return nil
}

// Back steps the flow one step backward.
func (f *Flow) Back(sessionID string) error {
	session, err := f.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	previous, ok := f.fsm.Previous(session.State)
	if !ok {
		return f.outOfOrder(session, "back")
	}

	switch session.State {
	case StateConfirming:
		session.Draft.HasDateTime = false
	case StateSelectingDateTime:
		session.Draft.HasResource = false
	case StateSelectingResource:
		session.Draft.HasService = false
	}
	session.LastError = ""
	session.State = previous
	session.touch()
	return nil
}

// Confirm resolves the resource if needed, hands the draft to the
// platform and completes the flow. On a platform failure the session
// stays in Confirming with the error attached for redisplay; the flow
// never retries on its own.
func (f *Flow) Confirm(ctx context.Context, sessionID string) (*Result, error) {
	session, err := f.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateConfirming || !session.Draft.HasDateTime {
		return nil, f.outOfOrder(session, "confirm")
	}

	draft := &session.Draft
	resourceID := draft.ResourceID
	if draft.Selector.IsAny() {
		in, err := f.availabilityInput(ctx, session, draft.Date)
		if err != nil {
			return nil, err
		}
		picked, ok := f.picker.Pick(in, draft.Slot)
		if !ok {
			session.LastError = ErrSlotUnavailable.Error()
			return nil, fmt.Errorf("%w: no resource free at %s", ErrSlotUnavailable, draft.Slot)
		}
		resourceID = picked

		service, err := f.serviceByID(ctx, session.BarbershopID, draft.ServiceID)
		if err != nil {
			return nil, err
		}
		draft.Price = service.PriceFor(resourceID)
	}

	appointmentID, err := f.platform.CreateAppointment(ctx, upstream.CreateAppointmentRequest{
		BarbershopID: session.BarbershopID,
		ResourceID:   resourceID,
		ServiceID:    draft.ServiceID,
		ClientID:     session.ClientID,
		Date:         draft.Date.Format(model.DateLayout),
		Start:        draft.Slot,
		End:          draft.Slot.Add(draft.Duration),
		Price:        draft.Price,
	})
	if err != nil {
		session.LastError = err.Error()
		f.log.Warn().Err(err).Str("session", session.ID).Msg("booking confirmation failed")
		return nil, err
	}

	draft.ResourceID = resourceID
	session.LastError = ""
	session.State = StateConfirmed
	session.touch()

	f.log.Info().
		Str("session", session.ID).
		Int64("appointment", appointmentID).
		Int64("resource", resourceID).
		Msg("booking confirmed")

	return &Result{
		AppointmentID: appointmentID,
		ResourceID:    resourceID,
		Date:          draft.Date.Format(model.DateLayout),
		Slot:          draft.Slot,
		Price:         draft.Price,
	}, nil
}

func (f *Flow) availabilityInput(ctx context.Context, session *Session, date time.Time) (availability.Input, error) {
	hours, err := f.platform.FetchOperatingHours(ctx, session.BarbershopID)
	if err != nil {
		return availability.Input{}, err
	}
	appointments, err := f.platform.FetchAppointments(ctx, session.BarbershopID, model.AnyResource(), date)
	if err != nil {
		return availability.Input{}, err
	}
	blockList, err := f.blocks.ListForShop(ctx, session.BarbershopID)
	if err != nil {
		return availability.Input{}, err
	}

	byResource := make(map[int64][]model.Appointment)
	for _, a := range appointments {
		byResource[a.ResourceID] = append(byResource[a.ResourceID], a)
	}

	var resourceIDs []int64
	if session.Draft.Selector.IsAny() {
		resources, err := f.platform.FetchResources(ctx, session.BarbershopID)
		if err != nil {
			return availability.Input{}, err
		}
		for _, r := range resources {
			resourceIDs = append(resourceIDs, r.ID)
		}
	}

	return availability.Input{
		Date:            date,
		Hours:           *hours,
		DurationMinutes: session.Draft.Duration,
		Selector:        session.Draft.Selector,
		Resources:       resourceIDs,
		Appointments:    byResource,
		Blocks:          blockList,
	}, nil
}

func (f *Flow) serviceByID(ctx context.Context, barbershopID, serviceID int64) (*model.Service, error) {
	services, err := f.platform.FetchServices(ctx, barbershopID)
	if err != nil {
		return nil, err
	}
	for i := range services {
		if services[i].ID == serviceID {
			return &services[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownService, serviceID)
}

func (f *Flow) outOfOrder(session *Session, op string) error {
	f.log.Warn().
		Str("session", session.ID).
		Str("state", string(session.State)).
		Str("op", op).
		Msg("booking step out of order")
	return ErrStepOutOfOrder
}
