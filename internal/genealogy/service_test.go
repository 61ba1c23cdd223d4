package genealogy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kinfolk/internal/models"
	"github.com/suPer8Hu/kinfolk/internal/relations"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, NewRepo(db).Migrate(context.Background()))
	return db
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewService(NewRepo(openTestDB(t)), zerolog.Nop(), opts...)
}

func addPerson(t *testing.T, s *Service, first string, home bool) *models.Person {
	t.Helper()
	p, err := s.AddPerson(context.Background(), models.NewPerson{FirstName: first, LastName: "Doe", IsHomePerson: home})
	require.NoError(t, err)
	return p
}

func homeCount(t *testing.T, s *Service) int {
	t.Helper()
	people, err := s.ListPeople(context.Background())
	require.NoError(t, err)
	n := 0
	for _, p := range people {
		if p.IsHomePerson {
			n++
		}
	}
	return n
}

func TestAddPerson_DefaultsAndValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := addPerson(t, s, "Ada", false)
	assert.Equal(t, models.GenderUnknown, p.Gender)
	assert.False(t, p.Enslaved)
	assert.NotEmpty(t, p.ID)

	_, err := s.AddPerson(ctx, models.NewPerson{FirstName: "  ", LastName: "Doe"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.AddPerson(ctx, models.NewPerson{FirstName: "A", LastName: "B", Gender: "Robot"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.AddPerson(ctx, models.NewPerson{FirstName: "A", LastName: "B", BirthDate: "12/01/1900"})
	require.ErrorIs(t, err, models.ErrValidation)
	e, ok := models.AsError(err)
	require.True(t, ok)
	assert.Contains(t, e.Hint, "YYYY-MM-DD")

	missing := "nobody"
	_, err = s.AddPerson(ctx, models.NewPerson{FirstName: "A", LastName: "B", MotherID: &missing})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSetHomePerson_LeavesExactlyOne(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	a := addPerson(t, s, "Ada", true)
	b := addPerson(t, s, "Ben", true)
	c := addPerson(t, s, "Cy", false)
	assert.Equal(t, 1, homeCount(t, s))

	for _, id := range []string{c.ID, a.ID, a.ID, b.ID} {
		_, err := s.SetHomePerson(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, homeCount(t, s))
	}

	got, err := s.GetPerson(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsHomePerson)
}

func TestUpdatePerson_ParentRules(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	grandpa := addPerson(t, s, "Gus", false)
	dad := addPerson(t, s, "Dan", false)
	kid := addPerson(t, s, "Kit", true)

	_, err := s.UpdatePerson(ctx, dad.ID, models.PersonUpdate{FatherID: &grandpa.ID})
	require.NoError(t, err)
	_, err = s.UpdatePerson(ctx, kid.ID, models.PersonUpdate{FatherID: &dad.ID})
	require.NoError(t, err)

	_, err = s.UpdatePerson(ctx, kid.ID, models.PersonUpdate{MotherID: &kid.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.UpdatePerson(ctx, grandpa.ID, models.PersonUpdate{FatherID: &kid.ID})
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "own ancestor")

	_, err = s.UpdatePerson(ctx, kid.ID, models.PersonUpdate{MotherID: &dad.ID})
	assert.ErrorIs(t, err, models.ErrValidation, "mother equal to father")

	none := ""
	p, err := s.UpdatePerson(ctx, kid.ID, models.PersonUpdate{FatherID: &none})
	require.NoError(t, err)
	assert.Nil(t, p.FatherID)
}

func TestUpdatePerson_ParentIDsStoredTrimmed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mom := addPerson(t, s, "Meg", false)
	kid := addPerson(t, s, "Kit", true)

	padded := "  " + mom.ID + " "
	p, err := s.UpdatePerson(ctx, kid.ID, models.PersonUpdate{MotherID: &padded})
	require.NoError(t, err)
	require.NotNil(t, p.MotherID)
	assert.Equal(t, mom.ID, *p.MotherID)

	// the cascade clear on delete must find the stored reference
	require.NoError(t, s.DeletePerson(ctx, mom.ID))
	got, err := s.GetPerson(ctx, kid.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MotherID)

	blank := "   "
	p, err = s.UpdatePerson(ctx, kid.ID, models.PersonUpdate{FatherID: &blank})
	require.NoError(t, err)
	assert.Nil(t, p.FatherID)
}

func TestUpdatePerson_NotFoundAndEmpty(t *testing.T) {
	s := newTestService(t)
	name := "X"
	_, err := s.UpdatePerson(context.Background(), "missing", models.PersonUpdate{FirstName: &name})
	assert.ErrorIs(t, err, models.ErrNotFound)

	p := addPerson(t, s, "Ada", false)
	_, err = s.UpdatePerson(context.Background(), p.ID, models.PersonUpdate{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAddMarriage_RejectsSelfMarriage(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	a := addPerson(t, s, "Ada", false)
	b := addPerson(t, s, "Ben", false)

	_, err := s.AddMarriage(ctx, models.NewMarriage{Spouse1ID: a.ID, Spouse2ID: a.ID})
	require.ErrorIs(t, err, models.ErrValidation)

	ms, err := s.ListMarriages(ctx)
	require.NoError(t, err)
	assert.Empty(t, ms)

	m, err := s.AddMarriage(ctx, models.NewMarriage{Spouse1ID: a.ID, Spouse2ID: b.ID, MarriageDate: "1990-05-01"})
	require.NoError(t, err)

	_, err = s.UpdateMarriage(ctx, m.ID, models.MarriageUpdate{Spouse2ID: &a.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.AddMarriage(ctx, models.NewMarriage{Spouse1ID: a.ID, Spouse2ID: "ghost"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeletePerson_ClearsReferences(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mom := addPerson(t, s, "Mia", false)
	dad := addPerson(t, s, "Dan", false)
	kid, err := s.AddPerson(ctx, models.NewPerson{FirstName: "Kit", LastName: "Doe", MotherID: &mom.ID})
	require.NoError(t, err)
	_, err = s.AddMarriage(ctx, models.NewMarriage{Spouse1ID: mom.ID, Spouse2ID: dad.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeletePerson(ctx, mom.ID))

	got, err := s.GetPerson(ctx, kid.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MotherID)

	ms, err := s.ListMarriages(ctx)
	require.NoError(t, err)
	assert.Empty(t, ms)

	assert.ErrorIs(t, s.DeletePerson(ctx, mom.ID), models.ErrNotFound)
}

func TestRelations_FallsBackToFirstPerson(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	r, err := s.Relations(ctx, "")
	require.NoError(t, err)
	assert.True(t, r.Empty())

	first := addPerson(t, s, "Ada", false)
	addPerson(t, s, "Ben", false)
	r, err = s.Relations(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, r.HomePersonID)

	_, err = s.Relations(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

type memCache struct {
	mu          sync.Mutex
	reports     map[string]relations.Report
	invalidated int
}

func (c *memCache) GetReport(_ context.Context, homeID string) (*relations.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reports[homeID]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memCache) SetReport(_ context.Context, homeID string, r relations.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[homeID] = r
	return nil
}

func (c *memCache) InvalidateReports(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = map[string]relations.Report{}
	c.invalidated++
	return nil
}

func TestRelations_CacheInvalidatedByMutation(t *testing.T) {
	cache := &memCache{reports: map[string]relations.Report{}}
	s := newTestService(t, WithReportCache(cache))
	ctx := context.Background()

	home := addPerson(t, s, "Ada", true)
	r, err := s.Relations(ctx, "")
	require.NoError(t, err)
	require.Len(t, r.Ancestry, 1)
	assert.Len(t, cache.reports, 1)

	_, err = s.AddPerson(ctx, models.NewPerson{FirstName: "Mia", LastName: "Doe", IsHomePerson: false})
	require.NoError(t, err)
	assert.Empty(t, cache.reports)

	mom, err := s.AddPerson(ctx, models.NewPerson{FirstName: "Meg", LastName: "Doe"})
	require.NoError(t, err)
	_, err = s.UpdatePerson(ctx, home.ID, models.PersonUpdate{MotherID: &mom.ID})
	require.NoError(t, err)

	r, err = s.Relations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, r.Ancestry, 2)
}

func TestSnapshotAndSeedDemo(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	seeded, err := SeedDemo(ctx, s)
	require.NoError(t, err)
	require.True(t, seeded)

	seeded, err = SeedDemo(ctx, s)
	require.NoError(t, err)
	assert.False(t, seeded)

	snap, err := s.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Len(t, snap.People, len(demoPeople))
	assert.Len(t, snap.Marriages, len(demoMarriages))
	assert.Equal(t, 1, homeCount(t, s))

	var john string
	for _, p := range snap.People {
		if p.IsHomePerson {
			john = p.FirstName
		}
	}
	assert.Equal(t, "John", john)
	require.NotEmpty(t, snap.Report.Ancestry)
	assert.Equal(t, "Self", snap.Report.Ancestry[0].Relation)
	require.Len(t, snap.Report.MaternalEnslaved, 1)
	assert.Equal(t, "Maternal Great-Grandmother", snap.Report.MaternalEnslaved[0].Relation)
}

func TestErrorCarriesDetailsAndHint(t *testing.T) {
	err := error(models.Validation("bad", "field x", "try y"))
	assert.Equal(t, "bad (field x). Hint: try y", err.Error())
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.False(t, errors.Is(err, models.ErrNotFound))
}
