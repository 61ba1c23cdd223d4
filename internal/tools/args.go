package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/kinfolk/internal/models"
)

type AddPersonArgs struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Gender    string `json:"gender" validate:"omitempty,oneof=Male Female Other Unknown"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	DeathDate string `json:"death_date" validate:"omitempty,datetime=2006-01-02"`
	MotherID  string `json:"mother_id"`
	FatherID  string `json:"father_id"`
}

type PersonUpdates struct {
	FirstName    *string `json:"first_name" validate:"omitempty,min=1"`
	LastName     *string `json:"last_name" validate:"omitempty,min=1"`
	Gender       *string `json:"gender" validate:"omitempty,oneof=Male Female Other Unknown"`
	BirthDate    *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	DeathDate    *string `json:"death_date" validate:"omitempty,datetime=2006-01-02"`
	MotherID     *string `json:"mother_id"`
	FatherID     *string `json:"father_id"`
	IsHomePerson *bool   `json:"is_home_person"`
}

type UpdatePersonArgs struct {
	PersonID string         `json:"person_id" validate:"required"`
	Updates  *PersonUpdates `json:"updates" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs copies the loosely typed argument map into dst and validates it.
func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return models.Validation("arguments are not valid JSON", err.Error(), "")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return models.Validation("arguments have the wrong shape", err.Error(), "Check the tool's parameter types.")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return models.Validation("invalid arguments", err.Error(), "")
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		parts = append(parts, describe(fe))
	}
	return models.Validation("invalid arguments", strings.Join(parts, "; "), "")
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "min":
		return field + " must not be empty"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func (a AddPersonArgs) toNewPerson() models.NewPerson {
	in := models.NewPerson{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Gender:    models.Gender(a.Gender),
		BirthDate: a.BirthDate,
		DeathDate: a.DeathDate,
		Enslaved:  false,
		DNAMatch:  false,
	}
	if a.MotherID != "" {
		in.MotherID = &a.MotherID
	}
	if a.FatherID != "" {
		in.FatherID = &a.FatherID
	}
	return in
}

func (u PersonUpdates) toUpdate() models.PersonUpdate {
	out := models.PersonUpdate{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		BirthDate:    u.BirthDate,
		DeathDate:    u.DeathDate,
		MotherID:     u.MotherID,
		FatherID:     u.FatherID,
		IsHomePerson: u.IsHomePerson,
	}
	if u.Gender != nil {
		g := models.Gender(*u.Gender)
		out.Gender = &g
	}
	return out
}
