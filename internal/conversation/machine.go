package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smileright/dental-frontdesk/internal/calendar"
	"github.com/smileright/dental-frontdesk/internal/clinic"
	"github.com/smileright/dental-frontdesk/internal/knowledge"
	"github.com/smileright/dental-frontdesk/internal/ledger"
	"github.com/smileright/dental-frontdesk/internal/observability/metrics"
	"github.com/smileright/dental-frontdesk/internal/patients"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

// ErrSessionClosed is returned when a turn arrives for an ended call.
var ErrSessionClosed = errors.New("conversation: session closed")

// Reply is the outcome of one caller turn: the utterance to speak and any
// role transfers that happened while producing it.
type Reply struct {
	SessionID string           `json:"session_id"`
	Utterance string           `json:"utterance"`
	Role      Role             `json:"role"`
	Transfers []TransferRecord `json:"transfers,omitempty"`
}

// Machine is the conversation state machine. All persistent mutations go
// through the patient directory and calendar; the machine itself only
// mutates session working memory.
type Machine struct {
	directory   patients.Directory
	calendar    *calendar.Service
	catalog     *knowledge.Catalog
	clinic      *clinic.Config
	ledger      *ledger.Ledger
	planner     UtterancePlanner
	metrics     *metrics.FrontDesk
	logger      *logging.Logger
	toolTimeout time.Duration
}

// MachineOption customizes a Machine.
type MachineOption func(*Machine)

// WithPlanner swaps the utterance planner, e.g. for an LLM-backed one.
func WithPlanner(p UtterancePlanner) MachineOption {
	return func(m *Machine) { m.planner = p }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(fd *metrics.FrontDesk) MachineOption {
	return func(m *Machine) { m.metrics = fd }
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) MachineOption {
	return func(m *Machine) { m.logger = l }
}

// WithToolTimeout bounds every external tool call.
func WithToolTimeout(d time.Duration) MachineOption {
	return func(m *Machine) { m.toolTimeout = d }
}

// NewMachine wires the orchestrator. Directory, calendar, catalog, clinic
// config, and ledger are required.
func NewMachine(directory patients.Directory, cal *calendar.Service, catalog *knowledge.Catalog, clinicCfg *clinic.Config, led *ledger.Ledger, opts ...MachineOption) *Machine {
	if directory == nil || cal == nil || catalog == nil || clinicCfg == nil || led == nil {
		panic("conversation: machine dependencies missing")
	}
	m := &Machine{
		directory:   directory,
		calendar:    cal,
		catalog:     catalog,
		clinic:      clinicCfg,
		ledger:      led,
		planner:     ScriptedPlanner{},
		logger:      logging.Default(),
		toolTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Component("conversation")
	return m
}

// HandleTurn processes one finalized caller transcript segment and produces
// the next utterance plus any role transfer. It is deterministic given the
// current role, slot set, and input classification. Component errors never
// surface raw: they are mapped to role-appropriate speech.
func (m *Machine) HandleTurn(ctx context.Context, s *Session, input string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Closed {
		return Reply{}, ErrSessionClosed
	}

	start := time.Now()
	s.Turns++
	transfersBefore := len(s.Transfers)

	m.ledger.Enqueue(ledger.Transcript(s.ID, string(s.Role), ledger.SpeakerCaller, input))
	s.appendHistory(ChatRoleUser, input)

	intent := classify(input)

	var scripted string
	var err error
	if intent == IntentReset {
		m.resetLocked(s)
		scripted = "Of course, let's start over. Welcome to " + m.clinic.Name + ", how can I help you today?"
	} else {
		switch s.Role {
		case RoleGreeter:
			scripted, err = m.handleGreeter(ctx, s, input, intent)
		case RolePatientIdentification:
			scripted, err = m.handleIdentification(ctx, s, input, intent)
		case RolePatientLookup:
			scripted, err = m.handleLookup(ctx, s, input, intent)
		case RoleRegistration:
			scripted, err = m.handleRegistration(ctx, s, input, intent)
		case RoleInfo:
			scripted, err = m.handleInfo(ctx, s, input, intent)
		case RoleBooking:
			scripted, err = m.handleBooking(ctx, s, input, intent)
		default:
			err = fmt.Errorf("conversation: unknown role %q", s.Role)
		}
	}

	if err != nil {
		// Only irrecoverable conditions reach here; everything conversational
		// was already mapped to speech by the role handler.
		m.logger.Error("fatal turn failure", "session_id", s.ID, "role", string(s.Role), "error", err)
		m.ledger.Enqueue(ledger.Metric(s.ID, "fatal_failure", 1))
		now := time.Now().UTC()
		s.Closed = true
		s.ClosedAt = &now
		apology := "I'm so sorry, I'm having technical trouble. Please call us back in a few minutes."
		m.ledger.Enqueue(ledger.Transcript(s.ID, string(s.Role), ledger.SpeakerAssistant, apology))
		return Reply{SessionID: s.ID, Utterance: apology, Role: s.Role}, err
	}

	utterance := m.planner.Plan(ctx, s.History, scripted)
	s.appendHistory(ChatRoleAssistant, utterance)
	m.ledger.Enqueue(ledger.Transcript(s.ID, string(s.Role), ledger.SpeakerAssistant, utterance))

	elapsed := time.Since(start)
	m.ledger.Enqueue(ledger.Metric(s.ID, "turn_latency_ms", float64(elapsed.Milliseconds())))
	m.metrics.ObserveTurn(string(s.Role), elapsed.Seconds())

	return Reply{
		SessionID: s.ID,
		Utterance: utterance,
		Role:      s.Role,
		Transfers: append([]TransferRecord(nil), s.Transfers[transfersBefore:]...),
	}, nil
}

// Transfer moves the session to a target role if the graph allows it. On an
// illegal edge it fails with ErrInvalidTransition and leaves the role
// unchanged.
func (m *Machine) Transfer(s *Session, target Role, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.transferLocked(s, target, reason)
}

// Reset is the only path back to the Greeter: it clears working memory and
// is ledgered as a transfer with reason "reset".
func (m *Machine) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.resetLocked(s)
}

func (m *Machine) transferLocked(s *Session, target Role, reason string) error {
	if !legalTransition(s.Role, target) {
		m.logger.Warn("rejected role transition",
			"session_id", s.ID,
			"from", string(s.Role),
			"to", string(target),
		)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Role, target)
	}
	m.recordTransfer(s, target, reason)
	return nil
}

func (m *Machine) resetLocked(s *Session) {
	if s.Role != RoleGreeter {
		m.recordTransfer(s, RoleGreeter, ReasonReset)
	}
	s.Slots = Slots{}
	s.Patient = nil
}

func (m *Machine) recordTransfer(s *Session, target Role, reason string) {
	from := s.Role
	rec := TransferRecord{From: from, To: target, Reason: reason, At: time.Now().UTC()}
	s.Transfers = append(s.Transfers, rec)
	s.Role = target
	s.Slots.Awaiting = AwaitNothing
	m.ledger.Enqueue(ledger.Transfer(s.ID, string(from), string(target), reason))
	m.metrics.ObserveTransfer(string(from), string(target))
	m.logger.Info("agent transfer", "session_id", s.ID, "from", string(from), "to", string(target), "reason", reason)
}

// BeginSession ledgers the opening of a call.
func (m *Machine) BeginSession(s *Session) {
	m.ledger.Enqueue(ledger.SessionStarted(s.ID, s.RoomID))
}

// EndSession ledgers the close of a call.
func (m *Machine) EndSession(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ledger.Enqueue(ledger.SessionClosed(s.ID))
	m.ledger.Enqueue(ledger.Metric(s.ID, "session_turns", float64(s.Turns)))
	m.ledger.Enqueue(ledger.Metric(s.ID, "session_transfers", float64(len(s.Transfers))))
}

// --- role handlers -------------------------------------------------------

func (m *Machine) handleGreeter(ctx context.Context, s *Session, input string, intent Intent) (string, error) {
	switch intent {
	case IntentUnknown:
		return "Welcome to " + m.clinic.Name + ", this is Alex. How can I help you today?", nil
	case IntentHours:
		return m.clinicInfoSpeech(ctx, s), nil
	}

	m.rememberDestination(s, intent)
	if err := m.transferLocked(s, RolePatientIdentification, "service request"); err != nil {
		return "", err
	}

	switch intent {
	case IntentReturning:
		if err := m.transferLocked(s, RolePatientLookup, "returning patient"); err != nil {
			return "", err
		}
		s.Slots.Awaiting = AwaitPhone
		return "Welcome back! Could I have your phone number so I can pull up your file?", nil
	case IntentNew:
		if err := m.transferLocked(s, RoleRegistration, "new patient"); err != nil {
			return "", err
		}
		s.Slots.Awaiting = AwaitName
		return "Happy to get you set up. May I have your full name?", nil
	default:
		s.Slots.Awaiting = AwaitPatientKind
		return "I can certainly help with that. Have you visited us before?", nil
	}
}

func (m *Machine) handleIdentification(ctx context.Context, s *Session, input string, intent Intent) (string, error) {
	m.rememberDestination(s, intent)

	returning := intent == IntentReturning || (s.Slots.Awaiting == AwaitPatientKind && intent == IntentYes)
	newPatient := intent == IntentNew || (s.Slots.Awaiting == AwaitPatientKind && intent == IntentNo)

	switch {
	case returning:
		if err := m.transferLocked(s, RolePatientLookup, "returning patient"); err != nil {
			return "", err
		}
		s.Slots.Awaiting = AwaitPhone
		return "Welcome back! Could I have your phone number so I can pull up your file?", nil
	case newPatient:
		if err := m.transferLocked(s, RoleRegistration, "new patient"); err != nil {
			return "", err
		}
		s.Slots.Awaiting = AwaitName
		return "Happy to get you set up. May I have your full name?", nil
	case intent == IntentHours:
		return m.clinicInfoSpeech(ctx, s), nil
	default:
		s.Slots.Awaiting = AwaitPatientKind
		return "Just so I pull up the right file, are you a new patient or have you visited us before?", nil
	}
}

func (m *Machine) handleLookup(ctx context.Context, s *Session, input string, intent Intent) (string, error) {
	m.rememberDestination(s, intent)

	// Identity already verified: the caller is choosing where to go next.
	if s.Verified() {
		if reply, ok := m.routeAfterIdentify(s); ok {
			return reply, nil
		}
		s.Slots.Awaiting = AwaitDestination
		return "Would you like treatment information, or shall we book an appointment?", nil
	}

	if s.Slots.Awaiting == AwaitRegisterOffer {
		switch intent {
		case IntentYes, IntentNew:
			if err := m.transferLocked(s, RoleRegistration, "verification failed, registering"); err != nil {
				return "", err
			}
			s.Slots.Awaiting = AwaitName
			return "No problem, let's get you registered. May I have your full name?", nil
		case IntentNo:
			s.Slots.Awaiting = AwaitPhone
			s.Slots.Phone = ""
			s.Slots.DOB = ""
			return "Alright. If you'd like to try again, just give me your phone number.", nil
		}
	}

	if reply := m.absorbPhone(s, input); reply != "" {
		return reply, nil
	}
	if s.Slots.DOB == "" {
		if dob := extractDate(input); dob != "" && patients.ValidDOB(dob) {
			s.Slots.DOB = dob
		}
	}

	if s.Slots.Phone == "" {
		s.Slots.Awaiting = AwaitPhone
		return "Could I have your phone number, please?", nil
	}
	if s.Slots.DOB == "" {
		s.Slots.Awaiting = AwaitDOB
		return "And your date of birth for verification? For example, 1990-05-01.", nil
	}

	// Both identity slots filled: verify. Exact match only, one bounded retry
	// on infrastructure trouble.
	var found *patients.Patient
	err := m.invokeTool(ctx, s, ToolFindPatient, func(ctx context.Context) error {
		var lookupErr error
		for attempt := 0; attempt < 2; attempt++ {
			found, lookupErr = m.directory.FindByPhoneAndDOB(ctx, s.Slots.Phone, s.Slots.DOB)
			if lookupErr == nil || !transient(lookupErr) {
				return lookupErr
			}
		}
		return lookupErr
	})
	switch {
	case err == nil:
		s.Patient = found
		s.Slots.Name = found.Name
		greeting := "Thank you, " + firstName(found.Name) + "! I found your file."
		if reply, ok := m.routeAfterIdentify(s); ok {
			return greeting + " " + reply, nil
		}
		s.Slots.Awaiting = AwaitDestination
		return greeting + " Would you like treatment information, or shall we book an appointment?", nil
	case errors.Is(err, patients.ErrNotFound):
		s.Slots.Phone = ""
		s.Slots.DOB = ""
		s.Slots.Awaiting = AwaitRegisterOffer
		return "I couldn't find a file matching that phone number and date of birth. Would you like to register as a new patient?", nil
	default:
		s.Slots.Awaiting = AwaitPhone
		return "I'm sorry, I'm having trouble reaching our records. Could you give me your phone number once more?", nil
	}
}

func (m *Machine) handleRegistration(ctx context.Context, s *Session, input string, intent Intent) (string, error) {
	m.rememberDestination(s, intent)

	// A caller whose file was already created stays registered. Route them
	// onward instead of collecting slots again.
	if s.Verified() {
		if reply, ok := m.routeAfterIdentify(s); ok {
			return reply, nil
		}
		s.Slots.Awaiting = AwaitDestination
		return "Would you like treatment information, or shall we book an appointment?", nil
	}

	// Fill slots in order: name, phone, date of birth or an explicit skip,
	// then an optional email.
	if s.Slots.Name == "" {
		if n := extractName(input); n != "" {
			s.Slots.Name = n
		} else if s.Slots.Awaiting == AwaitName && looksLikeBareName(input) {
			s.Slots.Name = titleCase(input)
		}
		if s.Slots.Name == "" {
			s.Slots.Awaiting = AwaitName
			return "May I have your full name, please?", nil
		}
	}

	if reply := m.absorbPhone(s, input); reply != "" {
		return reply, nil
	}
	if s.Slots.Phone == "" {
		s.Slots.Awaiting = AwaitPhone
		return "Thanks, " + firstName(s.Slots.Name) + ". What's the best phone number for you?", nil
	}

	if s.Slots.DOB == "" && !s.Slots.DOBSkipped {
		if intent == IntentSkip && s.Slots.Awaiting == AwaitDOB {
			s.Slots.DOBSkipped = true
		} else if dob := extractDate(input); dob != "" && patients.ValidDOB(dob) {
			s.Slots.DOB = dob
		}
		if s.Slots.DOB == "" && !s.Slots.DOBSkipped {
			if s.Slots.Awaiting == AwaitDOB {
				return "I didn't catch that. Your date of birth like 1990-05-01, or say skip.", nil
			}
			s.Slots.Awaiting = AwaitDOB
			return "Could I have your date of birth? You can say skip if you'd rather not.", nil
		}
	}

	if s.Slots.Email == "" && !s.Slots.EmailAsked {
		if email := extractEmail(input); email != "" {
			s.Slots.Email = email
		} else if s.Slots.Awaiting == AwaitEmail {
			// Any non-email answer to the email prompt counts as declining.
			s.Slots.EmailAsked = true
		} else {
			s.Slots.Awaiting = AwaitEmail
			return "Would you like to leave an email address for reminders? You can say skip.", nil
		}
	}

	// Exit condition holds: name, phone, and DOB-or-skip are present.
	var created *patients.Patient
	err := m.invokeTool(ctx, s, ToolCreatePatient, func(ctx context.Context) error {
		var createErr error
		created, createErr = m.directory.Create(ctx, s.Slots.Name, s.Slots.Phone, s.Slots.DOB, s.Slots.Email)
		return createErr
	})
	switch {
	case err == nil:
		s.Patient = created
		welcome := "You're all set, " + firstName(created.Name) + "!"
		if reply, ok := m.routeAfterIdentify(s); ok {
			return welcome + " " + reply, nil
		}
		s.Slots.Awaiting = AwaitDestination
		return welcome + " Would you like treatment information, or shall we book an appointment?", nil
	case errors.Is(err, patients.ErrDuplicatePhone):
		s.Slots.Phone = ""
		s.Slots.Awaiting = AwaitPhone
		return "That phone number is already on file with us. Could you double-check the number for me?", nil
	default:
		return "I'm sorry, I couldn't save your details just now. Let's try once more in a moment. What's the best phone number for you?", nil
	}
}

func (m *Machine) handleInfo(ctx context.Context, s *Session, input string, intent Intent) (string, error) {
	wantsBooking := intent == IntentBooking || (s.Slots.Awaiting == AwaitBookOffer && intent == IntentYes)
	if wantsBooking {
		// The discussed treatment travels with the caller into Booking.
		if err := m.transferLocked(s, RoleBooking, "caller chose to schedule"); err != nil {
			return "", err
		}
		return m.bookingKickoff(s), nil
	}
	if s.Slots.Awaiting == AwaitBookOffer && intent == IntentNo {
		s.Slots.Awaiting = AwaitNothing
		return "No problem. Is there another treatment you'd like to hear about?", nil
	}
	if intent == IntentHours {
		return m.clinicInfoSpeech(ctx, s), nil
	}

	var results []knowledge.Treatment
	err := m.invokeTool(ctx, s, ToolSearchTreatments, func(context.Context) error {
		var searchErr error
		results, searchErr = m.catalog.Search(input)
		return searchErr
	})
	var noMatch *knowledge.NoMatchError
	switch {
	case err == nil:
		top := results[0]
		s.Slots.TreatmentID = top.ID
		s.Slots.Awaiting = AwaitBookOffer
		return knowledge.SpeakSummary(top) + " Would you like to book it?", nil
	case errors.As(err, &noMatch):
		if len(noMatch.Suggestions) == 0 {
			return "I couldn't find a treatment like that. Could you describe it differently?", nil
		}
		names := make([]string, 0, len(noMatch.Suggestions))
		for _, t := range noMatch.Suggestions {
			names = append(names, t.Name)
		}
		return "I couldn't find that treatment. Did you mean " + speakList(names, "or") + "?", nil
	default:
		return "I'm sorry, I couldn't look that up just now. Which treatment would you like to hear about?", nil
	}
}

func (m *Machine) handleBooking(ctx context.Context, s *Session, input string, intent Intent) (string, error) {
	// An email mentioned mid-booking patches the patient record.
	if email := extractEmail(input); email != "" && s.Patient != nil && s.Patient.Email == "" {
		patientID := s.Patient.ID
		if err := m.invokeTool(ctx, s, ToolUpdatePatientField, func(ctx context.Context) error {
			return m.directory.UpdateField(ctx, patientID, patients.FieldEmail, email)
		}); err == nil {
			s.Patient.Email = email
		}
	}

	if s.Slots.Awaiting == AwaitConfirm {
		switch intent {
		case IntentYes:
			return m.commitBooking(ctx, s)
		case IntentNo:
			s.Slots.Date = ""
			s.Slots.Time = ""
			s.Slots.Awaiting = AwaitDate
			return "Sure, no problem. What other day would work for you?", nil
		}
	}

	if d := extractDate(input); d != "" {
		s.Slots.Date = d
	}
	if t := extractTime(input); t != "" {
		s.Slots.Time = t
	}

	// A treatment named during booking resolves through the same fuzzy
	// search the Info agent uses.
	if s.Slots.TreatmentID == "" && intent == IntentInfo {
		var results []knowledge.Treatment
		if err := m.invokeTool(ctx, s, ToolSearchTreatments, func(context.Context) error {
			var searchErr error
			results, searchErr = m.catalog.Search(input)
			return searchErr
		}); err == nil {
			s.Slots.TreatmentID = results[0].ID
		}
	}

	if s.Slots.Date == "" {
		s.Slots.Awaiting = AwaitDate
		return "What day works for you? You can say a date like 2024-01-08.", nil
	}
	if s.Slots.Time == "" {
		s.Slots.Awaiting = AwaitTime
		return "And what time would you like? For example 09:00.", nil
	}

	duration := m.durationFor(s)

	var within bool
	var conflict *calendar.Conflict
	err := m.invokeTool(ctx, s, ToolCheckAvailability, func(ctx context.Context) error {
		var checkErr error
		within, checkErr = m.calendar.IsWithinBusinessHours(s.Slots.Date, s.Slots.Time, duration)
		if checkErr != nil {
			return checkErr
		}
		if !within {
			return nil
		}
		conflict, checkErr = m.calendar.CheckConflict(ctx, s.Slots.Date, s.Slots.Time, duration)
		return checkErr
	})
	switch {
	case errors.Is(err, calendar.ErrInvalidSlot):
		s.Slots.Date = ""
		s.Slots.Time = ""
		s.Slots.Awaiting = AwaitDate
		return "I didn't quite catch that date and time. Could you give me the date first, like 2024-01-08?", nil
	case err != nil:
		return "I'm sorry, I couldn't check our calendar just now. Could you give me that time once more?", nil
	}

	if !within {
		alternatives := m.speakAlternatives(ctx, s, duration)
		s.Slots.Date = ""
		s.Slots.Time = ""
		s.Slots.Awaiting = AwaitDate
		return "I'm afraid we're closed then. " + m.clinic.HoursSpeech() + alternatives, nil
	}
	if conflict != nil {
		alternatives := m.speakAlternatives(ctx, s, duration)
		s.Slots.Time = ""
		s.Slots.Awaiting = AwaitTime
		return "That time is already booked." + alternatives, nil
	}

	s.Slots.Awaiting = AwaitConfirm
	return m.confirmPrompt(s, duration), nil
}

// commitBooking re-validates and inserts atomically; a race lost between the
// advisory check and commit surfaces as SlotUnavailable with alternatives.
func (m *Machine) commitBooking(ctx context.Context, s *Session) (string, error) {
	if s.Patient == nil {
		return "Before I book that, I need to pull up your file. Could I have your phone number?", nil
	}

	duration := m.durationFor(s)
	patientID := s.Patient.ID

	var booked calendar.Appointment
	err := m.invokeTool(ctx, s, ToolBookAppointment, func(ctx context.Context) error {
		var bookErr error
		booked, bookErr = m.calendar.Book(ctx, patientID, s.Slots.Date, s.Slots.Time, duration, s.Slots.TreatmentID)
		return bookErr
	})
	switch {
	case err == nil:
		m.metrics.ObserveBooking("booked")
		s.Slots.Awaiting = AwaitNothing
		// Clear the slot so a follow-up booking starts fresh instead of
		// colliding with the appointment we just made.
		s.Slots.Date = ""
		s.Slots.Time = ""
		reply := "You're booked for " + booked.Date + " at " + booked.Time + "."
		if booked.EstimatedCostRange != "" {
			if t, ok := m.catalog.ByID(s.Slots.TreatmentID); ok {
				reply += " The estimated cost is " + knowledge.SpeakPriceRange(t) + " and it takes about " + knowledge.SpeakDuration(t.DurationMinutes) + "."
			}
		}
		return reply + " Is there anything else I can help with?", nil
	case errors.Is(err, calendar.ErrSlotUnavailable), errors.Is(err, calendar.ErrOutsideBusinessHours):
		m.metrics.ObserveBooking("slot_unavailable")
		alternatives := m.speakAlternatives(ctx, s, duration)
		s.Slots.Time = ""
		s.Slots.Awaiting = AwaitTime
		return "I'm sorry, that slot was just taken." + alternatives, nil
	default:
		m.metrics.ObserveBooking("error")
		s.Slots.Time = ""
		s.Slots.Awaiting = AwaitTime
		return "I'm sorry, I couldn't complete the booking. Please try a different time.", nil
	}
}

// --- helpers -------------------------------------------------------------

func (m *Machine) rememberDestination(s *Session, intent Intent) {
	switch intent {
	case IntentInfo:
		s.Slots.Destination = RoleInfo
	case IntentBooking:
		s.Slots.Destination = RoleBooking
	}
}

// routeAfterIdentify moves a verified caller to their stated destination.
func (m *Machine) routeAfterIdentify(s *Session) (string, bool) {
	switch s.Slots.Destination {
	case RoleInfo:
		if err := m.transferLocked(s, RoleInfo, "treatment information"); err != nil {
			return "", false
		}
		return "Which treatment would you like to hear about?", true
	case RoleBooking:
		if err := m.transferLocked(s, RoleBooking, "appointment booking"); err != nil {
			return "", false
		}
		return m.bookingKickoff(s), true
	default:
		return "", false
	}
}

func (m *Machine) bookingKickoff(s *Session) string {
	if t, ok := m.catalog.ByID(s.Slots.TreatmentID); ok {
		s.Slots.Awaiting = AwaitDate
		return "Let's find a time for your " + strings.ToLower(t.Name) + ". What day works for you? You can say a date like 2024-01-08."
	}
	s.Slots.Awaiting = AwaitDate
	return "Let's find you a time. What day works for you? You can say a date like 2024-01-08."
}

func (m *Machine) confirmPrompt(s *Session, duration int) string {
	var b strings.Builder
	b.WriteString("I can book ")
	if t, ok := m.catalog.ByID(s.Slots.TreatmentID); ok {
		b.WriteString("your " + strings.ToLower(t.Name))
		b.WriteString(" on " + s.Slots.Date + " at " + s.Slots.Time + ".")
		b.WriteString(" It costs " + knowledge.SpeakPriceRange(t) + " and takes about " + knowledge.SpeakDuration(duration) + ".")
	} else {
		b.WriteString("an appointment on " + s.Slots.Date + " at " + s.Slots.Time + ".")
	}
	b.WriteString(" Shall I confirm?")
	return b.String()
}

func (m *Machine) durationFor(s *Session) int {
	if t, ok := m.catalog.ByID(s.Slots.TreatmentID); ok {
		return t.DurationMinutes
	}
	return m.calendar.DefaultDuration()
}

// speakAlternatives renders up to three free slots as speech, prefixed with
// a space, or an empty string when none could be found.
func (m *Machine) speakAlternatives(ctx context.Context, s *Session, duration int) string {
	var slots []calendar.Slot
	err := m.invokeTool(ctx, s, ToolSuggestSlots, func(ctx context.Context) error {
		var suggestErr error
		slots, suggestErr = m.calendar.SuggestAlternatives(ctx, s.Slots.Date, s.Slots.Time, duration, 3)
		return suggestErr
	})
	if err != nil || len(slots) == 0 {
		return ""
	}
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, slot.Date+" at "+slot.Time)
	}
	return " The nearest openings are " + speakList(parts, "or") + ". Would one of those work?"
}

// absorbPhone fills the phone slot from the input. The returned string is a
// clarification utterance when the caller was asked for a phone number and
// gave something unusable; empty otherwise.
func (m *Machine) absorbPhone(s *Session, input string) string {
	if s.Slots.Phone != "" {
		return ""
	}
	candidate := extractPhone(input)
	if candidate == "" {
		if s.Slots.Awaiting == AwaitPhone && strings.ContainsAny(input, "0123456789") {
			return "That number doesn't look complete. I need ten digits, like 514-555-0100."
		}
		return ""
	}
	normalized, err := patients.NormalizePhone(candidate)
	if err != nil {
		return "That number doesn't look complete. I need ten digits, like 514-555-0100."
	}
	s.Slots.Phone = normalized
	return ""
}

func (m *Machine) clinicInfoSpeech(ctx context.Context, s *Session) string {
	info := m.clinic.InfoSpeech()
	_ = m.invokeTool(ctx, s, ToolClinicInfo, func(context.Context) error { return nil })
	return info
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}

func titleCase(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	for i, f := range fields {
		if len(f) > 0 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}

// speakList joins items for speech: "a, b, or c".
func speakList(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " " + conj + " " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", " + conj + " " + items[len(items)-1]
	}
}
