package user

import "time"

// ProgramRef is one management-program membership. The field names stay
// camelCase on the wire, matching the stored shape.
type ProgramRef struct {
	ProgramID string `json:"programId" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=owner staff helper"`
}

// Record is a user document as stored in the users collection. The
// document ID is the email, not OnpakuUserID.
type Record struct {
	OnpakuUserID       string       `json:"onpakuUserId"`
	FamilyName         string       `json:"familyName"`
	FirstName          string       `json:"firstName"`
	BirthYear          int          `json:"birthYear"`
	Gender             string       `json:"gender"`
	Zip                string       `json:"zip"`
	Prefecture         string       `json:"prefecture"`
	Address            string       `json:"address"`
	Street             string       `json:"street"`
	Tel                string       `json:"tel"`
	ManagementPrograms []ProgramRef `json:"managementPrograms"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// CreateRequest registers a user. ID is the external Onpaku user ID.
type CreateRequest struct {
	ID                 string       `json:"id" validate:"required"`
	Email              string       `json:"email" validate:"required,email"`
	FamilyName         string       `json:"family_name" validate:"required"`
	FirstName          string       `json:"first_name" validate:"required"`
	BirthYear          int          `json:"birth_year" validate:"required,gte=1900"`
	Gender             string       `json:"gender"`
	Zip                string       `json:"zip"`
	Prefecture         string       `json:"prefecture"`
	Address            string       `json:"address"`
	Street             string       `json:"street"`
	Tel                string       `json:"tel"`
	ManagementPrograms []ProgramRef `json:"management_programs" validate:"omitempty,dive"`
}

// UpdateRequest partially updates a user. Nil pointer fields are left
// untouched in the stored document.
type UpdateRequest struct {
	ID                 string       `json:"id" validate:"required"`
	Email              string       `json:"email" validate:"required,email"`
	FamilyName         *string      `json:"family_name,omitempty"`
	FirstName          *string      `json:"first_name,omitempty"`
	BirthYear          *int         `json:"birth_year,omitempty" validate:"omitempty,gte=1900"`
	Gender             *string      `json:"gender,omitempty"`
	Zip                *string      `json:"zip,omitempty"`
	Prefecture         *string      `json:"prefecture,omitempty"`
	Address            *string      `json:"address,omitempty"`
	Street             *string      `json:"street,omitempty"`
	Tel                *string      `json:"tel,omitempty"`
	ManagementPrograms []ProgramRef `json:"management_programs,omitempty" validate:"omitempty,dive"`
}

// Response is the read projection of a user.
type Response struct {
	ID                 string       `json:"id"`
	Email              string       `json:"email"`
	FamilyName         string       `json:"family_name"`
	FirstName          string       `json:"first_name"`
	BirthYear          int          `json:"birth_year"`
	Gender             string       `json:"gender"`
	Zip                string       `json:"zip"`
	Prefecture         string       `json:"prefecture"`
	Address            string       `json:"address"`
	Street             string       `json:"street"`
	Tel                string       `json:"tel"`
	ManagementPrograms []ProgramRef `json:"management_programs"`
	CreatedAt          time.Time    `json:"created_at"`
}
