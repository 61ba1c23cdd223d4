package genealogy

import (
	"context"

	"github.com/suPer8Hu/kinfolk/internal/models"
)

type demoPerson struct {
	key    string
	in     models.NewPerson
	mother string
	father string
}

type demoMarriage struct {
	spouse1, spouse2 string
	date, place      string
}

var demoPeople = []demoPerson{
	{key: "walter", in: models.NewPerson{FirstName: "Walter", LastName: "Doe", Gender: models.GenderMale, BirthDate: "1890-03-14", DeathDate: "1961-11-02", BirthPlace: "Richmond, Virginia", PaternalHaplogroup: "E-M2"}},
	{key: "hattie", in: models.NewPerson{FirstName: "Hattie", LastName: "Doe", Gender: models.GenderFemale, BirthDateApprox: "about 1894", MaternalHaplogroup: "L2a1"}},
	{key: "ruth", in: models.NewPerson{FirstName: "Ruth", LastName: "Miller", Gender: models.GenderFemale, BirthDate: "1858-06-01", Enslaved: true, MaternalHaplogroup: "L3e2"}},
	{key: "robert", in: models.NewPerson{FirstName: "Robert", LastName: "Doe", Gender: models.GenderMale, BirthDate: "1921-08-30"}, mother: "hattie", father: "walter"},
	{key: "mary", in: models.NewPerson{FirstName: "Mary", LastName: "Smith", Gender: models.GenderFemale, BirthDate: "1925-02-17"}, mother: "ruthsdaughter"},
	{key: "ruthsdaughter", in: models.NewPerson{FirstName: "Clara", LastName: "Smith", Gender: models.GenderFemale, BirthDate: "1889-12-05"}, mother: "ruth"},
	{key: "james", in: models.NewPerson{FirstName: "James", LastName: "Doe", Gender: models.GenderMale, BirthDate: "1923-04-09"}, mother: "hattie", father: "walter"},
	{key: "john", in: models.NewPerson{FirstName: "John", LastName: "Doe", Gender: models.GenderMale, BirthDate: "1950-05-15", IsHomePerson: true, DNAMatch: true}, mother: "mary", father: "robert"},
	{key: "jane", in: models.NewPerson{FirstName: "Jane", LastName: "Doe", Gender: models.GenderFemale, BirthDate: "1953-09-21"}, mother: "mary", father: "robert"},
	{key: "emily", in: models.NewPerson{FirstName: "Emily", LastName: "Doe", Gender: models.GenderFemale, BirthDate: "1978-01-11"}, father: "john"},
	{key: "peter", in: models.NewPerson{FirstName: "Peter", LastName: "Doe", Gender: models.GenderMale, BirthDate: "1952-07-04"}, father: "james"},
}

var demoMarriages = []demoMarriage{
	{spouse1: "walter", spouse2: "hattie", date: "1915-06-12", place: "Richmond, Virginia"},
	{spouse1: "robert", spouse2: "mary", date: "1948-10-02", place: "Baltimore, Maryland"},
}

// SeedDemo loads a small multi-generation family when the store is empty. It
// reports whether anything was inserted.
func SeedDemo(ctx context.Context, s *Service) (bool, error) {
	n, err := s.CountPeople(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	ids := map[string]string{}
	pending := append([]demoPerson(nil), demoPeople...)
	for len(pending) > 0 {
		var next []demoPerson
		for _, dp := range pending {
			if (dp.mother != "" && ids[dp.mother] == "") || (dp.father != "" && ids[dp.father] == "") {
				next = append(next, dp)
				continue
			}
			in := dp.in
			if dp.mother != "" {
				id := ids[dp.mother]
				in.MotherID = &id
			}
			if dp.father != "" {
				id := ids[dp.father]
				in.FatherID = &id
			}
			p, err := s.AddPerson(ctx, in)
			if err != nil {
				return false, err
			}
			ids[dp.key] = p.ID
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}

	for _, dm := range demoMarriages {
		if _, err := s.AddMarriage(ctx, models.NewMarriage{
			Spouse1ID:     ids[dm.spouse1],
			Spouse2ID:     ids[dm.spouse2],
			MarriageDate:  dm.date,
			MarriagePlace: dm.place,
		}); err != nil {
			return false, err
		}
	}
	return true, s.Refresh(ctx)
}
