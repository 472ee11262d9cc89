// Package conversation is the dialogue orchestrator: a state machine of agent
// roles that routes a caller through identification, registration or lookup,
// treatment information, and booking, invoking directory, calendar, and
// knowledge-base tools and ledgering every step.
package conversation

import "errors"

// Role is one agent in the dialogue graph. The set is closed; dispatch is on
// the tag, never on subclassing.
type Role string

const (
	RoleGreeter               Role = "greeter"
	RolePatientIdentification Role = "patient_identification"
	RolePatientLookup         Role = "patient_lookup"
	RoleRegistration          Role = "registration"
	RoleInfo                  Role = "info"
	RoleBooking               Role = "booking"
)

// ErrInvalidTransition is returned when a transfer does not follow an edge of
// the role graph; the session role is left unchanged.
var ErrInvalidTransition = errors.New("conversation: invalid role transition")

// ReasonReset marks the only way back to the Greeter: an explicit session
// reset.
const ReasonReset = "reset"

// transitions is the directed role graph. Re-entering the Greeter happens
// only through Reset, so no edge points back to it.
var transitions = map[Role][]Role{
	RoleGreeter:               {RolePatientIdentification},
	RolePatientIdentification: {RolePatientLookup, RoleRegistration},
	RolePatientLookup:         {RoleInfo, RoleBooking, RoleRegistration},
	RoleRegistration:          {RoleInfo, RoleBooking},
	RoleInfo:                  {RoleBooking},
	RoleBooking:               {},
}

func legalTransition(from, to Role) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Tool names enumerate every function call a role may invoke.
const (
	ToolFindPatient        = "find_patient_by_phone_and_dob"
	ToolCreatePatient      = "create_patient_record"
	ToolUpdatePatientField = "update_patient_field"
	ToolAppointmentHistory = "get_appointment_history"
	ToolSearchTreatments   = "search_treatments"
	ToolCheckAvailability  = "check_availability"
	ToolSuggestSlots       = "suggest_alternative_slots"
	ToolBookAppointment    = "book_appointment"
	ToolCancelAppointment  = "cancel_appointment"
	ToolClinicInfo         = "get_clinic_info"
)

// ErrToolNotAllowed is returned when a role invokes a tool outside its
// whitelist. The invocation is rejected and ledgered; the session continues.
var ErrToolNotAllowed = errors.New("conversation: tool not in role whitelist")

// toolWhitelist is the per-role tool exposure. Identity tools never leak into
// the Info role, and booking tools never leak into identification roles.
var toolWhitelist = map[Role]map[string]bool{
	RoleGreeter: {
		ToolClinicInfo: true,
	},
	RolePatientIdentification: {
		ToolClinicInfo: true,
	},
	RolePatientLookup: {
		ToolFindPatient:        true,
		ToolAppointmentHistory: true,
		ToolClinicInfo:         true,
	},
	RoleRegistration: {
		ToolCreatePatient:      true,
		ToolUpdatePatientField: true,
		ToolClinicInfo:         true,
	},
	RoleInfo: {
		ToolSearchTreatments: true,
		ToolClinicInfo:       true,
	},
	RoleBooking: {
		ToolSearchTreatments:   true,
		ToolCheckAvailability:  true,
		ToolSuggestSlots:       true,
		ToolBookAppointment:    true,
		ToolCancelAppointment:  true,
		ToolUpdatePatientField: true,
		ToolClinicInfo:         true,
	},
}

func toolAllowed(role Role, tool string) bool {
	return toolWhitelist[role][tool]
}
