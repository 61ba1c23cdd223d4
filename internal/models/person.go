package models

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
	GenderOther   Gender = "Other"
	GenderUnknown Gender = "Unknown"
)

// Genders lists the accepted gender values in catalog order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther, GenderUnknown}

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// Person is one individual in the family graph. MotherID and FatherID are weak
// references: nil means the parent is unknown.
type Person struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	FirstName  string `gorm:"size:100;not null" json:"first_name"`
	MiddleName string `gorm:"size:100" json:"middle_name,omitempty"`
	LastName   string `gorm:"size:100;not null;index" json:"last_name"`
	Suffix     string `gorm:"size:20" json:"suffix,omitempty"`
	OtherNames string `gorm:"type:text" json:"other_names,omitempty"`

	BirthDate       string `gorm:"size:10" json:"birth_date,omitempty"`
	BirthDateApprox string `gorm:"size:100" json:"birth_date_approx,omitempty"`
	BirthPlace      string `gorm:"size:255" json:"birth_place,omitempty"`
	DeathDate       string `gorm:"size:10" json:"death_date,omitempty"`
	DeathDateApprox string `gorm:"size:100" json:"death_date_approx,omitempty"`
	DeathPlace      string `gorm:"size:255" json:"death_place,omitempty"`

	Gender   Gender  `gorm:"size:16;not null" json:"gender"`
	MotherID *string `gorm:"size:36;index" json:"mother_id"`
	FatherID *string `gorm:"size:36;index" json:"father_id"`

	Enslaved           bool   `gorm:"not null" json:"enslaved"`
	DNAMatch           bool   `gorm:"column:dna_match;not null" json:"dna_match"`
	PaternalHaplogroup string `gorm:"size:64" json:"paternal_haplogroup,omitempty"`
	MaternalHaplogroup string `gorm:"size:64" json:"maternal_haplogroup,omitempty"`
	IsHomePerson       bool   `gorm:"not null;index" json:"is_home_person"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`
	Story string `gorm:"type:text" json:"story,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Person) TableName() string { return "persons" }

func (p Person) FullName() string {
	parts := []string{p.FirstName}
	if p.MiddleName != "" {
		parts = append(parts, p.MiddleName)
	}
	parts = append(parts, p.LastName)
	if p.Suffix != "" {
		parts = append(parts, p.Suffix)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ParentID returns the dereferenced parent id or "" when unknown.
func ParentID(ref *string) string {
	if ref == nil {
		return ""
	}
	return strings.TrimSpace(*ref)
}

// Marriage is undirected: spouse slot order carries no meaning.
type Marriage struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Spouse1ID     string    `gorm:"size:36;not null;index" json:"spouse1_id"`
	Spouse2ID     string    `gorm:"size:36;not null;index" json:"spouse2_id"`
	MarriageDate  string    `gorm:"size:10" json:"marriage_date,omitempty"`
	MarriagePlace string    `gorm:"size:255" json:"marriage_place,omitempty"`
	DivorceDate   string    `gorm:"size:10" json:"divorce_date,omitempty"`
	DivorcePlace  string    `gorm:"size:255" json:"divorce_place,omitempty"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Marriage) TableName() string { return "marriages" }

// Involves reports whether the person is one of the spouses.
func (m Marriage) Involves(personID string) bool {
	return m.Spouse1ID == personID || m.Spouse2ID == personID
}
