package audit

import "time"

// Action identifies what happened.
type Action string

const (
	ActionUserCreated        Action = "user_created"
	ActionUserUpdated        Action = "user_updated"
	ActionProgramRegistered  Action = "program_registered"
	ActionProgramUpdated     Action = "program_updated"
	ActionPartnerAdded       Action = "partner_added"
	ActionReservationCreated Action = "reservation_created"
	ActionVCIssued           Action = "vc_issued"
	ActionVCStatusUpdated    Action = "vc_status_updated"
)

// Event is emitted from domain logic to capture key actions. Subject
// identifies the affected resource (program ID, reservation ID or VC
// document ID depending on the action). Keep it transport-agnostic so
// sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Email     string    `json:"email,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
