package program

import "time"

// PartnerUser is one entry of a program's embedded partner list.
type PartnerUser struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=owner staff helper"`
}

// Record is a program document as stored in the programs collection,
// keyed by the externally supplied program ID.
type Record struct {
	Title        string        `json:"title"`
	SubTitle     string        `json:"subTitle"`
	Number       int           `json:"number"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	PlaceName    string        `json:"placeName"`
	Zip          string        `json:"zip"`
	Prefecture   string        `json:"prefecture"`
	Address      string        `json:"address"`
	Street       string        `json:"street"`
	PartnerUsers []PartnerUser `json:"partnerUsers"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ProgramFields carries the program metadata of a registration request.
type ProgramFields struct {
	ID         string  `json:"id" validate:"required"`
	Title      string  `json:"title" validate:"required"`
	SubTitle   string  `json:"sub_title"`
	Number     int     `json:"number"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	PlaceName  string  `json:"place_name"`
	Zip        string  `json:"zip"`
	Prefecture string  `json:"prefecture"`
	Address    string  `json:"address"`
	Street     string  `json:"street"`
}

// CreateRequest registers or re-registers a program together with its
// full partner list.
type CreateRequest struct {
	Program      ProgramFields `json:"program" validate:"required"`
	PartnerUsers []PartnerUser `json:"partner_users" validate:"omitempty,dive"`
}

// UpdateFields carries the optional program metadata of a partial update.
// Nil pointer fields are left untouched.
type UpdateFields struct {
	ID         string   `json:"id" validate:"required"`
	Title      *string  `json:"title,omitempty"`
	SubTitle   *string  `json:"sub_title,omitempty"`
	Number     *int     `json:"number,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	PlaceName  *string  `json:"place_name,omitempty"`
	Zip        *string  `json:"zip,omitempty"`
	Prefecture *string  `json:"prefecture,omitempty"`
	Address    *string  `json:"address,omitempty"`
	Street     *string  `json:"street,omitempty"`
}

// UpdateRequest partially updates a program. A supplied partner_users list
// replaces the stored list wholesale.
type UpdateRequest struct {
	Program      UpdateFields  `json:"program" validate:"required"`
	PartnerUsers []PartnerUser `json:"partner_users,omitempty" validate:"omitempty,dive"`
}

// Response is the read projection of a program.
type Response struct {
	Program      ResponseFields `json:"program"`
	PartnerUsers []PartnerUser  `json:"partner_users"`
}

// ResponseFields mirrors ProgramFields plus the bookkeeping timestamp.
type ResponseFields struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SubTitle   string    `json:"sub_title"`
	Number     int       `json:"number"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	PlaceName  string    `json:"place_name"`
	Zip        string    `json:"zip"`
	Prefecture string    `json:"prefecture"`
	Address    string    `json:"address"`
	Street     string    `json:"street"`
	UpdatedAt  time.Time `json:"updated_at"`
}
