package reservation

import "time"

// Execution is the reserved time slot of a program. Times arrive as
// ISO-8601 strings and are validated before storage.
type Execution struct {
	ID        string `json:"id" validate:"required"`
	ProgramID string `json:"program_id" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
	Price     int    `json:"price" validate:"min=0"`
}

// CreateRequest books an execution slot. The booking holder is identified
// by email directly; no external user ID resolution is performed.
type CreateRequest struct {
	ReservationID string    `json:"reservation_id" validate:"required"`
	Email         string    `json:"email" validate:"required,email"`
	Execution     Execution `json:"execution" validate:"required"`
}

// Record is a reservation document as stored in the reservations
// collection, keyed by the caller-supplied reservation ID.
type Record struct {
	UserEmail   string    `json:"userEmail"`
	ExecutionID string    `json:"executionId"`
	ProgramID   string    `json:"programId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Capacity    int       `json:"capacity"`
	Price       int       `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Response is the read projection of a reservation. Times are rendered in
// fixed UTC+9 wall-clock form.
type Response struct {
	ReservationID string `json:"reservation_id"`
	Email         string `json:"email"`
	ExecutionID   string `json:"execution_id"`
	ProgramID     string `json:"program_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Capacity      int    `json:"capacity"`
	Price         int    `json:"price"`
	CreatedAt     string `json:"created_at"`
}
