package entities

import (
	"strings"
	"time"
)

// Patient represents a registered laboratory patient
type Patient struct {
	ID                   string     `json:"id" db:"id"`
	PatientIDNo          string     `json:"patient_id_no" db:"patient_id_no"` // business key printed on request forms
	FirstName            string     `json:"first_name" db:"first_name"`
	MiddleName           string     `json:"middle_name" db:"middle_name"`
	LastName             string     `json:"last_name" db:"last_name"`
	Age                  int        `json:"age" db:"age"`
	Birthdate            *time.Time `json:"birthdate,omitempty" db:"birthdate"`
	Sex                  string     `json:"sex" db:"sex"`
	ContactNumber        string     `json:"contact_number" db:"contact_number"`
	Address              string     `json:"address" db:"address"`
	MedicalHistory       string     `json:"medical_history" db:"medical_history"`
	Medications          string     `json:"medications" db:"medications"`
	Allergies            string     `json:"allergies" db:"allergies"`
	DemographicsComplete bool       `json:"demographics_complete" db:"demographics_complete"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName joins the name parts the way results and billing refer to the patient.
func (p *Patient) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// HasCompleteDemographics reports whether the optional demographic block is filled in.
func (p *Patient) HasCompleteDemographics() bool {
	return p.Birthdate != nil &&
		strings.TrimSpace(p.Sex) != "" &&
		strings.TrimSpace(p.ContactNumber) != "" &&
		strings.TrimSpace(p.Address) != ""
}

// PatientUpdate carries the mutable demographic fields. Nil fields are left unchanged.
type PatientUpdate struct {
	FirstName      *string    `json:"first_name,omitempty"`
	MiddleName     *string    `json:"middle_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	Age            *int       `json:"age,omitempty"`
	Birthdate      *time.Time `json:"birthdate,omitempty"`
	Sex            *string    `json:"sex,omitempty"`
	ContactNumber  *string    `json:"contact_number,omitempty"`
	Address        *string    `json:"address,omitempty"`
	MedicalHistory *string    `json:"medical_history,omitempty"`
	Medications    *string    `json:"medications,omitempty"`
	Allergies      *string    `json:"allergies,omitempty"`
}

// Apply copies the set fields onto p.
func (u PatientUpdate) Apply(p *Patient) {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.MiddleName != nil {
		p.MiddleName = *u.MiddleName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Birthdate != nil {
		p.Birthdate = u.Birthdate
	}
	if u.Sex != nil {
		p.Sex = *u.Sex
	}
	if u.ContactNumber != nil {
		p.ContactNumber = *u.ContactNumber
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.MedicalHistory != nil {
		p.MedicalHistory = *u.MedicalHistory
	}
	if u.Medications != nil {
		p.Medications = *u.Medications
	}
	if u.Allergies != nil {
		p.Allergies = *u.Allergies
	}
}
