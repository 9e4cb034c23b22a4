package vc

import (
	"fmt"
	"time"
)

// Type discriminates what fact a credential attests.
type Type string

const (
	TypeUser    Type = "user"
	TypePartner Type = "partner"
	TypeEvent   Type = "event"
)

// Status is the credential lifecycle state. Pending means issued but not
// yet acted upon by the downstream consumer.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown vc status %q", raw)
	}
}

// Record is a credential document as stored in the vcs collection.
type Record struct {
	UserEmail string         `json:"userEmail"`
	Type      Type           `json:"type"`
	VCData    map[string]any `json:"vcData"`
	Status    Status         `json:"status"`
	IssuedAt  time.Time      `json:"issuedAt"`
}

// PendingVC is a credential record together with its document ID, as
// returned by the pending listing.
type PendingVC struct {
	ID        string         `json:"id"`
	UserEmail string         `json:"userEmail"`
	Type      Type           `json:"type"`
	VCData    map[string]any `json:"vcData"`
	Status    Status         `json:"status"`
	IssuedAt  time.Time      `json:"issuedAt"`
}

// UserVCData is the payload of a user credential. Updates carry only the
// fields that changed, so everything is optional.
type UserVCData struct {
	ID         string `json:"id,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	BirthYear  int    `json:"birthYear,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Zip        string `json:"zip,omitempty"`
	Prefecture string `json:"prefecture,omitempty"`
	Address    string `json:"address,omitempty"`
	Street     string `json:"street,omitempty"`
	Tel        string `json:"tel,omitempty"`
}

// PartnerVCData is the payload of a partner credential. ID is the program ID.
type PartnerVCData struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Role       string `json:"role"`
	PlaceName  string `json:"placeName"`
	Prefecture string `json:"prefecture"`
	Address    string `json:"address"`
}

// EventVCData is the payload of an event credential. Times keep the exact
// strings the reservation request carried.
type EventVCData struct {
	ReservationID string `json:"reservationId"`
	ProgramID     string `json:"programId"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Price         int    `json:"price"`
}
