// Package genealogy is the person/marriage graph store. It owns every write
// invariant: a single home person, no self-marriage, parent references that
// resolve and never form a cycle.
package genealogy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/models"
	"github.com/suPer8Hu/kinfolk/internal/relations"
	"golang.org/x/sync/errgroup"
)

const defaultMaxAncestorWalk = 10000

// ReportCache stores derived reports between mutations.
type ReportCache interface {
	GetReport(ctx context.Context, homeID string) (*relations.Report, bool, error)
	SetReport(ctx context.Context, homeID string, r relations.Report) error
	InvalidateReports(ctx context.Context) error
}

type Service struct {
	repo            *Repo
	cache           ReportCache
	log             zerolog.Logger
	maxAncestorWalk int
}

type Option func(*Service)

func WithReportCache(c ReportCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMaxAncestorWalk bounds the cycle check performed on parent assignment.
func WithMaxAncestorWalk(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAncestorWalk = n
		}
	}
}

func NewService(repo *Repo, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		log:             log.With().Str("component", "genealogy").Logger(),
		maxAncestorWalk: defaultMaxAncestorWalk,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is the full dataset plus the report derived for its home person.
type Snapshot struct {
	People    []models.Person   `json:"people"`
	Marriages []models.Marriage `json:"marriages"`
	Report    relations.Report  `json:"relations"`
}

func (s *Service) ListPeople(ctx context.Context) ([]models.Person, error) {
	people, err := s.repo.ListPeople(ctx)
	if err != nil {
		return nil, models.Transport("list people", err)
	}
	return people, nil
}

func (s *Service) ListMarriages(ctx context.Context) ([]models.Marriage, error) {
	ms, err := s.repo.ListMarriages(ctx)
	if err != nil {
		return nil, models.Transport("list marriages", err)
	}
	return ms, nil
}

func (s *Service) CountPeople(ctx context.Context) (int64, error) {
	n, err := s.repo.CountPeople(ctx)
	if err != nil {
		return 0, models.Transport("count people", err)
	}
	return n, nil
}

func (s *Service) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	p, err := s.repo.GetPerson(ctx, id)
	if err != nil {
		return nil, s.lookupErr("person", id, "get person", err)
	}
	return p, nil
}

func (s *Service) GetMarriage(ctx context.Context, id string) (*models.Marriage, error) {
	m, err := s.repo.GetMarriage(ctx, id)
	if err != nil {
		return nil, s.lookupErr("marriage", id, "get marriage", err)
	}
	return m, nil
}

func (s *Service) lookupErr(entity, id, op string, err error) error {
	if isNotFound(err) {
		return models.NotFound(entity, id)
	}
	return models.Transport(op, err)
}

// resolveHome picks the requested person, else the flagged home person, else
// the first person.
func resolveHome(people []models.Person, homeID string) (string, error) {
	if homeID != "" {
		for _, p := range people {
			if p.ID == homeID {
				return homeID, nil
			}
		}
		return "", models.NotFound("person", homeID)
	}
	for _, p := range people {
		if p.IsHomePerson {
			return p.ID, nil
		}
	}
	if len(people) > 0 {
		return people[0].ID, nil
	}
	return "", nil
}

// Relations derives the report for homeID; an empty id means the current home
// person.
func (s *Service) Relations(ctx context.Context, homeID string) (relations.Report, error) {
	if s.cache != nil {
		if r, ok, err := s.cache.GetReport(ctx, homeID); err != nil {
			s.log.Warn().Err(err).Msg("report cache read failed")
		} else if ok {
			return *r, nil
		}
	}

	people, err := s.ListPeople(ctx)
	if err != nil {
		return relations.Report{}, err
	}
	resolved, err := resolveHome(people, homeID)
	if err != nil {
		return relations.Report{}, err
	}
	report := relations.Derive(people, resolved)

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, homeID, report); err != nil {
			s.log.Warn().Err(err).Msg("report cache write failed")
		}
	}
	return report, nil
}

// Snapshot loads people and marriages concurrently. Both reads must succeed.
func (s *Service) Snapshot(ctx context.Context, homeID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		people, err := s.ListPeople(gctx)
		snap.People = people
		return err
	})
	g.Go(func() error {
		ms, err := s.ListMarriages(gctx)
		snap.Marriages = ms
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	resolved, err := resolveHome(snap.People, homeID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Report = relations.Derive(snap.People, resolved)
	return snap, nil
}

// Refresh drops cached reports and recomputes the one for the current home
// person.
func (s *Service) Refresh(ctx context.Context) error {
	s.invalidate(ctx)
	start := time.Now()
	r, err := s.Relations(ctx, "")
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("home_person_id", r.HomePersonID).
		Int("ancestors", len(r.Ancestry)).
		Dur("cost", time.Since(start)).
		Msg("relations refreshed")
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateReports(ctx); err != nil {
		s.log.Warn().Err(err).Msg("report cache invalidation failed")
	}
}

func validDate(v string) bool {
	if v == "" {
		return true
	}
	_, err := time.Parse(time.DateOnly, v)
	return err == nil
}

func checkDates(fields map[string]string) error {
	for name, v := range fields {
		if !validDate(v) {
			return models.Validation("invalid "+name, name+"="+v, "Dates use the YYYY-MM-DD format.")
		}
	}
	return nil
}

func normRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	v := strings.TrimSpace(*ref)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) AddPerson(ctx context.Context, in models.NewPerson) (*models.Person, error) {
	p := models.Person{
		ID:                 uuid.NewString(),
		FirstName:          strings.TrimSpace(in.FirstName),
		MiddleName:         strings.TrimSpace(in.MiddleName),
		LastName:           strings.TrimSpace(in.LastName),
		Suffix:             strings.TrimSpace(in.Suffix),
		OtherNames:         in.OtherNames,
		BirthDate:          strings.TrimSpace(in.BirthDate),
		BirthDateApprox:    in.BirthDateApprox,
		BirthPlace:         in.BirthPlace,
		DeathDate:          strings.TrimSpace(in.DeathDate),
		DeathDateApprox:    in.DeathDateApprox,
		DeathPlace:         in.DeathPlace,
		Gender:             in.Gender,
		MotherID:           normRef(in.MotherID),
		FatherID:           normRef(in.FatherID),
		Enslaved:           in.Enslaved,
		DNAMatch:           in.DNAMatch,
		PaternalHaplogroup: strings.TrimSpace(in.PaternalHaplogroup),
		MaternalHaplogroup: strings.TrimSpace(in.MaternalHaplogroup),
		IsHomePerson:       in.IsHomePerson,
		Notes:              in.Notes,
		Story:              in.Story,
	}
	if p.FirstName == "" || p.LastName == "" {
		return nil, models.Validation("first_name and last_name are required", "", "")
	}
	if p.Gender == "" {
		p.Gender = models.GenderUnknown
	}
	if !p.Gender.Valid() {
		return nil, models.Validation("invalid gender", string(p.Gender), "Use one of Male, Female, Other, Unknown.")
	}
	if err := checkDates(map[string]string{"birth_date": p.BirthDate, "death_date": p.DeathDate}); err != nil {
		return nil, err
	}
	if err := s.checkParents(ctx, p.ID, models.ParentID(p.MotherID), models.ParentID(p.FatherID), false); err != nil {
		return nil, err
	}

	if err := s.repo.CreatePerson(ctx, &p); err != nil {
		return nil, models.Transport("insert person", err)
	}
	s.invalidate(ctx)
	s.log.Info().Str("person_id", p.ID).Bool("home", p.IsHomePerson).Msg("person added")
	return &p, nil
}

func (s *Service) UpdatePerson(ctx context.Context, id string, upd models.PersonUpdate) (*models.Person, error) {
	cols := upd.Columns()
	if len(cols) == 0 {
		return nil, models.Validation("no fields to update", "", "Pass at least one field in updates.")
	}
	existing, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, name := range []string{"first_name", "last_name"} {
		if v, ok := cols[name].(string); ok {
			v = strings.TrimSpace(v)
			if v == "" {
				return nil, models.Validation(name+" cannot be empty", "", "")
			}
			cols[name] = v
		}
	}
	if upd.Gender != nil && !upd.Gender.Valid() {
		return nil, models.Validation("invalid gender", string(*upd.Gender), "Use one of Male, Female, Other, Unknown.")
	}
	dates := map[string]string{}
	for _, name := range []string{"birth_date", "death_date"} {
		if v, ok := cols[name].(string); ok {
			dates[name] = strings.TrimSpace(v)
			cols[name] = dates[name]
		}
	}
	if err := checkDates(dates); err != nil {
		return nil, err
	}

	mother, father := models.ParentID(existing.MotherID), models.ParentID(existing.FatherID)
	if upd.MotherID != nil {
		mother = strings.TrimSpace(*upd.MotherID)
	}
	if upd.FatherID != nil {
		father = strings.TrimSpace(*upd.FatherID)
	}
	if upd.MotherID != nil || upd.FatherID != nil {
		if err := s.checkParents(ctx, id, mother, father, true); err != nil {
			return nil, err
		}
	}

	p, err := s.repo.UpdatePerson(ctx, id, cols)
	if err != nil {
		return nil, s.lookupErr("person", id, "update person", err)
	}
	s.invalidate(ctx)
	s.log.Info().Str("person_id", id).Int("fields", len(cols)).Msg("person updated")
	return p, nil
}

// SetHomePerson makes id the only home person.
func (s *Service) SetHomePerson(ctx context.Context, id string) (*models.Person, error) {
	home := true
	return s.UpdatePerson(ctx, id, models.PersonUpdate{IsHomePerson: &home})
}

func (s *Service) DeletePerson(ctx context.Context, id string) error {
	if err := s.repo.DeletePerson(ctx, id); err != nil {
		return s.lookupErr("person", id, "delete person", err)
	}
	s.invalidate(ctx)
	s.log.Info().Str("person_id", id).Msg("person deleted")
	return nil
}

// checkParents validates prospective parent ids for personID. existing is
// true when personID is already stored and may therefore have descendants.
func (s *Service) checkParents(ctx context.Context, personID, motherID, fatherID string, existing bool) error {
	if motherID == "" && fatherID == "" {
		return nil
	}
	if motherID != "" && motherID == fatherID {
		return models.Validation("mother and father must be different people", "id "+motherID, "")
	}

	people, err := s.ListPeople(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]models.Person, len(people))
	for _, p := range people {
		byID[p.ID] = p
	}

	for _, parent := range []struct{ role, id string }{{"mother", motherID}, {"father", fatherID}} {
		if parent.id == "" {
			continue
		}
		if parent.id == personID {
			return models.Validation("a person cannot be their own "+parent.role, "id "+personID, "")
		}
		if _, ok := byID[parent.id]; !ok {
			e := models.NotFound(parent.role, parent.id)
			e.Kind = models.KindValidation
			return e
		}
		if !existing {
			continue
		}
		cyclic, err := s.reachesAncestor(byID, parent.id, personID)
		if err != nil {
			return err
		}
		if cyclic {
			return models.Validation(
				"parent assignment would make a person their own ancestor",
				parent.role+" "+parent.id+" descends from "+personID,
				"Check the parent ids; the family tree must not contain cycles.",
			)
		}
	}
	return nil
}

// reachesAncestor reports whether target appears among from and its ancestors.
func (s *Service) reachesAncestor(byID map[string]models.Person, from, target string) (bool, error) {
	stack := []string{from}
	visited := map[string]bool{}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true, nil
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		if len(visited) > s.maxAncestorWalk {
			return false, models.Validation("ancestor chain too deep to verify", "", "")
		}
		p, ok := byID[id]
		if !ok {
			continue
		}
		if m := models.ParentID(p.MotherID); m != "" {
			stack = append(stack, m)
		}
		if f := models.ParentID(p.FatherID); f != "" {
			stack = append(stack, f)
		}
	}
	return false, nil
}

func (s *Service) AddMarriage(ctx context.Context, in models.NewMarriage) (*models.Marriage, error) {
	m := models.Marriage{
		ID:            uuid.NewString(),
		Spouse1ID:     strings.TrimSpace(in.Spouse1ID),
		Spouse2ID:     strings.TrimSpace(in.Spouse2ID),
		MarriageDate:  strings.TrimSpace(in.MarriageDate),
		MarriagePlace: in.MarriagePlace,
		DivorceDate:   strings.TrimSpace(in.DivorceDate),
		DivorcePlace:  in.DivorcePlace,
		Notes:         in.Notes,
	}
	if err := s.checkSpouses(ctx, m.Spouse1ID, m.Spouse2ID); err != nil {
		return nil, err
	}
	if err := checkDates(map[string]string{"marriage_date": m.MarriageDate, "divorce_date": m.DivorceDate}); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMarriage(ctx, &m); err != nil {
		return nil, models.Transport("insert marriage", err)
	}
	s.invalidate(ctx)
	s.log.Info().Str("marriage_id", m.ID).Msg("marriage added")
	return &m, nil
}

func (s *Service) UpdateMarriage(ctx context.Context, id string, upd models.MarriageUpdate) (*models.Marriage, error) {
	cols := upd.Columns()
	if len(cols) == 0 {
		return nil, models.Validation("no fields to update", "", "")
	}
	existing, err := s.GetMarriage(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Spouse1ID != nil || upd.Spouse2ID != nil {
		s1, s2 := existing.Spouse1ID, existing.Spouse2ID
		if upd.Spouse1ID != nil {
			s1 = strings.TrimSpace(*upd.Spouse1ID)
			cols["spouse1_id"] = s1
		}
		if upd.Spouse2ID != nil {
			s2 = strings.TrimSpace(*upd.Spouse2ID)
			cols["spouse2_id"] = s2
		}
		if err := s.checkSpouses(ctx, s1, s2); err != nil {
			return nil, err
		}
	}
	dates := map[string]string{}
	for _, name := range []string{"marriage_date", "divorce_date"} {
		if v, ok := cols[name].(string); ok {
			dates[name] = v
		}
	}
	if err := checkDates(dates); err != nil {
		return nil, err
	}

	m, err := s.repo.UpdateMarriage(ctx, id, cols)
	if err != nil {
		return nil, s.lookupErr("marriage", id, "update marriage", err)
	}
	s.invalidate(ctx)
	return m, nil
}

func (s *Service) DeleteMarriage(ctx context.Context, id string) error {
	if err := s.repo.DeleteMarriage(ctx, id); err != nil {
		return s.lookupErr("marriage", id, "delete marriage", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) checkSpouses(ctx context.Context, s1, s2 string) error {
	if s1 == "" || s2 == "" {
		return models.Validation("both spouses are required", "", "")
	}
	if s1 == s2 {
		return models.Validation("a person cannot marry themselves", "spouse id "+s1, "Pick two different people.")
	}
	for _, id := range []string{s1, s2} {
		if _, err := s.GetPerson(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
