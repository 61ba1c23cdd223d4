package models

import "strings"

// NewPerson carries the fields accepted when inserting a person.
type NewPerson struct {
	FirstName          string  `json:"first_name" binding:"required"`
	MiddleName         string  `json:"middle_name"`
	LastName           string  `json:"last_name" binding:"required"`
	Suffix             string  `json:"suffix"`
	OtherNames         string  `json:"other_names"`
	BirthDate          string  `json:"birth_date"`
	BirthDateApprox    string  `json:"birth_date_approx"`
	BirthPlace         string  `json:"birth_place"`
	DeathDate          string  `json:"death_date"`
	DeathDateApprox    string  `json:"death_date_approx"`
	DeathPlace         string  `json:"death_place"`
	Gender             Gender  `json:"gender"`
	MotherID           *string `json:"mother_id"`
	FatherID           *string `json:"father_id"`
	Enslaved           bool    `json:"enslaved"`
	DNAMatch           bool    `json:"dna_match"`
	PaternalHaplogroup string  `json:"paternal_haplogroup"`
	MaternalHaplogroup string  `json:"maternal_haplogroup"`
	IsHomePerson       bool    `json:"is_home_person"`
	Notes              string  `json:"notes"`
	Story              string  `json:"story"`
}

// PersonUpdate is a partial update: nil fields are left untouched. For
// MotherID and FatherID an empty string clears the reference.
type PersonUpdate struct {
	FirstName          *string `json:"first_name"`
	MiddleName         *string `json:"middle_name"`
	LastName           *string `json:"last_name"`
	Suffix             *string `json:"suffix"`
	OtherNames         *string `json:"other_names"`
	BirthDate          *string `json:"birth_date"`
	BirthDateApprox    *string `json:"birth_date_approx"`
	BirthPlace         *string `json:"birth_place"`
	DeathDate          *string `json:"death_date"`
	DeathDateApprox    *string `json:"death_date_approx"`
	DeathPlace         *string `json:"death_place"`
	Gender             *Gender `json:"gender"`
	MotherID           *string `json:"mother_id"`
	FatherID           *string `json:"father_id"`
	Enslaved           *bool   `json:"enslaved"`
	DNAMatch           *bool   `json:"dna_match"`
	PaternalHaplogroup *string `json:"paternal_haplogroup"`
	MaternalHaplogroup *string `json:"maternal_haplogroup"`
	IsHomePerson       *bool   `json:"is_home_person"`
	Notes              *string `json:"notes"`
	Story              *string `json:"story"`
}

// Columns maps the set fields to their column names for gorm Updates.
func (u PersonUpdate) Columns() map[string]any {
	cols := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	// blank clears the reference; ids are stored trimmed
	setRef := func(col string, v *string) {
		if v == nil {
			return
		}
		id := strings.TrimSpace(*v)
		if id == "" {
			cols[col] = nil
			return
		}
		cols[col] = id
	}
	setBool := func(col string, v *bool) {
		if v != nil {
			cols[col] = *v
		}
	}

	setStr("first_name", u.FirstName)
	setStr("middle_name", u.MiddleName)
	setStr("last_name", u.LastName)
	setStr("suffix", u.Suffix)
	setStr("other_names", u.OtherNames)
	setStr("birth_date", u.BirthDate)
	setStr("birth_date_approx", u.BirthDateApprox)
	setStr("birth_place", u.BirthPlace)
	setStr("death_date", u.DeathDate)
	setStr("death_date_approx", u.DeathDateApprox)
	setStr("death_place", u.DeathPlace)
	if u.Gender != nil {
		cols["gender"] = string(*u.Gender)
	}
	setRef("mother_id", u.MotherID)
	setRef("father_id", u.FatherID)
	setBool("enslaved", u.Enslaved)
	setBool("dna_match", u.DNAMatch)
	setStr("paternal_haplogroup", u.PaternalHaplogroup)
	setStr("maternal_haplogroup", u.MaternalHaplogroup)
	setBool("is_home_person", u.IsHomePerson)
	setStr("notes", u.Notes)
	setStr("story", u.Story)
	return cols
}

func (u PersonUpdate) Empty() bool { return len(u.Columns()) == 0 }

type NewMarriage struct {
	Spouse1ID     string `json:"spouse1_id" binding:"required"`
	Spouse2ID     string `json:"spouse2_id" binding:"required"`
	MarriageDate  string `json:"marriage_date"`
	MarriagePlace string `json:"marriage_place"`
	DivorceDate   string `json:"divorce_date"`
	DivorcePlace  string `json:"divorce_place"`
	Notes         string `json:"notes"`
}

type MarriageUpdate struct {
	Spouse1ID     *string `json:"spouse1_id"`
	Spouse2ID     *string `json:"spouse2_id"`
	MarriageDate  *string `json:"marriage_date"`
	MarriagePlace *string `json:"marriage_place"`
	DivorceDate   *string `json:"divorce_date"`
	DivorcePlace  *string `json:"divorce_place"`
	Notes         *string `json:"notes"`
}

func (u MarriageUpdate) Columns() map[string]any {
	cols := map[string]any{}
	for col, v := range map[string]*string{
		"spouse1_id":     u.Spouse1ID,
		"spouse2_id":     u.Spouse2ID,
		"marriage_date":  u.MarriageDate,
		"marriage_place": u.MarriagePlace,
		"divorce_date":   u.DivorceDate,
		"divorce_place":  u.DivorcePlace,
		"notes":          u.Notes,
	} {
		if v != nil {
			cols[col] = *v
		}
	}
	return cols
}
