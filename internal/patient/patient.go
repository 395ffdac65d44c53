package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

// Input is the data supplied to register a patient.
// Name and Age are required. Empty optional fields are stored as NULL.
type Input struct {
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Age              string `json:"age"` // free text, see DESIGN.md
	Phone            string `json:"phone,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Address          string `json:"address,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

// Validate checks the required fields.
func (in Input) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Age) == "" {
		missing = append(missing, "age")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// Patient is a stored patient record.
type Patient struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            *string   `json:"email"`
	Age              string    `json:"age"`
	Phone            *string   `json:"phone"`
	Gender           *string   `json:"gender"`
	Address          *string   `json:"address"`
	EmergencyContact *string   `json:"emergency_contact"`
	CreatedAt        time.Time `json:"created_at"`
}

// record is the row shape of the patients table.
type record struct {
	ID               string             `db:"id"`
	Name             string             `db:"name"`
	Email            *string            `db:"email"`
	Age              string             `db:"age"`
	Phone            *string            `db:"phone"`
	Gender           *string            `db:"gender"`
	Address          *string            `db:"address"`
	EmergencyContact *string            `db:"emergency_contact"`
	CreatedAt        database.Timestamp `db:"created_at"`
}

// newRecord builds the insert row for in under the given id.
func newRecord(id string, in Input) record {
	return record{
		ID:               id,
		Name:             in.Name,
		Email:            optional(in.Email),
		Age:              in.Age,
		Phone:            optional(in.Phone),
		Gender:           optional(in.Gender),
		Address:          optional(in.Address),
		EmergencyContact: optional(in.EmergencyContact),
	}
}

func (r record) patient() Patient {
	return Patient{
		ID:               r.ID,
		Name:             r.Name,
		Email:            r.Email,
		Age:              r.Age,
		Phone:            r.Phone,
		Gender:           r.Gender,
		Address:          r.Address,
		EmergencyContact: r.EmergencyContact,
		CreatedAt:        r.CreatedAt.Time,
	}
}

// optional maps blank text to NULL.
func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
