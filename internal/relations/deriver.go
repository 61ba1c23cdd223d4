// Package relations derives family-relationship views from the raw
// parent-pointer graph. Everything here is a pure function of its input.
package relations

import (
	"github.com/suPer8Hu/kinfolk/internal/models"
)

type graph struct {
	byID     map[string]*models.Person
	order    []*models.Person
	children map[string][]*models.Person
}

func newGraph(people []models.Person) *graph {
	g := &graph{
		byID:     make(map[string]*models.Person, len(people)),
		order:    make([]*models.Person, 0, len(people)),
		children: make(map[string][]*models.Person),
	}
	for i := range people {
		p := &people[i]
		if _, dup := g.byID[p.ID]; dup {
			continue
		}
		g.byID[p.ID] = p
		g.order = append(g.order, p)
	}
	for _, p := range g.order {
		if m := models.ParentID(p.MotherID); m != "" {
			g.children[m] = append(g.children[m], p)
		}
		if f := models.ParentID(p.FatherID); f != "" && f != models.ParentID(p.MotherID) {
			g.children[f] = append(g.children[f], p)
		}
	}
	return g
}

// Derive computes the relationship report for homeID. An empty homeID selects
// the person flagged as home person, else the first person. When no home
// person resolves, every collection is empty.
func Derive(people []models.Person, homeID string) Report {
	g := newGraph(people)

	var home *models.Person
	if homeID != "" {
		home = g.byID[homeID]
	} else {
		for _, p := range g.order {
			if p.IsHomePerson {
				home = p
				break
			}
		}
		if home == nil && len(g.order) > 0 {
			home = g.order[0]
		}
	}
	if home == nil {
		return emptyReport("")
	}

	r := emptyReport(home.ID)
	r.Ancestry = g.ancestry(home)

	seen := map[string]bool{home.ID: true}
	for _, a := range r.Ancestry {
		seen[a.PersonID] = true
	}
	r.Descendants = g.descendants(home, seen)
	r.Lateral = g.lateral(home, seen)

	for _, a := range r.Ancestry {
		if a.PaternalHaplogroup != "" {
			r.PaternalHaplogroup = append(r.PaternalHaplogroup, haplogroupTrace(a, a.PaternalHaplogroup))
		}
		if a.MaternalHaplogroup != "" {
			r.MaternalHaplogroup = append(r.MaternalHaplogroup, haplogroupTrace(a, a.MaternalHaplogroup))
		}
		if !a.Enslaved {
			continue
		}
		if a.Side != SideMaternal {
			r.PaternalEnslaved = append(r.PaternalEnslaved, enslavedTrace(a))
		}
		if a.Side != SidePaternal {
			r.MaternalEnslaved = append(r.MaternalEnslaved, enslavedTrace(a))
		}
	}
	return r
}

type ancestorStep struct {
	id        string
	gen       int
	side      Side
	viaMother bool
}

// ancestry walks parent links breadth first so rows come out ordered by
// generation, mothers before fathers. A (person, side) pair is visited once,
// which bounds the walk on cyclic data.
func (g *graph) ancestry(home *models.Person) []Ancestor {
	out := []Ancestor{ancestorRow(home, ancestorStep{id: home.ID, side: SideNone})}

	queue := parentSteps(home, 1, "")
	seen := map[ancestorStep]bool{}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.id == home.ID {
			continue
		}
		key := ancestorStep{id: s.id, side: s.side}
		if seen[key] {
			continue
		}
		seen[key] = true

		p, ok := g.byID[s.id]
		if !ok {
			continue
		}
		out = append(out, ancestorRow(p, s))
		queue = append(queue, parentSteps(p, s.gen+1, s.side)...)
	}
	return out
}

func parentSteps(p *models.Person, gen int, side Side) []ancestorStep {
	var steps []ancestorStep
	if m := models.ParentID(p.MotherID); m != "" {
		s := side
		if gen == 1 {
			s = SideMaternal
		}
		steps = append(steps, ancestorStep{id: m, gen: gen, side: s, viaMother: true})
	}
	if f := models.ParentID(p.FatherID); f != "" {
		s := side
		if gen == 1 {
			s = SidePaternal
		}
		steps = append(steps, ancestorStep{id: f, gen: gen, side: s})
	}
	return steps
}

func ancestorRow(p *models.Person, s ancestorStep) Ancestor {
	return Ancestor{
		PersonID:           p.ID,
		FullName:           p.FullName(),
		Relation:           ancestorLabel(s.gen, s.side, s.viaMother),
		Generation:         s.gen,
		Side:               s.side,
		PaternalHaplogroup: p.PaternalHaplogroup,
		MaternalHaplogroup: p.MaternalHaplogroup,
		Enslaved:           p.Enslaved,
		DNAMatch:           p.DNAMatch,
		GreatDegree:        greatDegree(s.gen),
	}
}

func (g *graph) descendants(home *models.Person, seen map[string]bool) []Kin {
	out := []Kin{}
	frontier := []*models.Person{home}
	for gen := 1; len(frontier) > 0; gen++ {
		var next []*models.Person
		for _, parent := range frontier {
			for _, c := range g.children[parent.ID] {
				if seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				out = append(out, kinRow(c, descendantLabel(gen, c.Gender), gen, SideNone))
				next = append(next, c)
			}
		}
		frontier = next
	}
	return out
}

func kinRow(p *models.Person, relation string, gen int, side Side) Kin {
	return Kin{
		PersonID:           p.ID,
		FullName:           p.FullName(),
		Relation:           relation,
		Generation:         gen,
		Side:               side,
		PaternalHaplogroup: p.PaternalHaplogroup,
		MaternalHaplogroup: p.MaternalHaplogroup,
		Enslaved:           p.Enslaved,
		DNAMatch:           p.DNAMatch,
	}
}

func haplogroupTrace(a Ancestor, haplogroup string) HaplogroupTrace {
	return HaplogroupTrace{
		PersonID:    a.PersonID,
		FullName:    a.FullName,
		Relation:    a.Relation,
		Generation:  a.Generation,
		Side:        a.Side,
		GreatDegree: a.GreatDegree,
		Haplogroup:  haplogroup,
	}
}

func enslavedTrace(a Ancestor) EnslavedTrace {
	return EnslavedTrace{
		PersonID:    a.PersonID,
		FullName:    a.FullName,
		Relation:    a.Relation,
		Generation:  a.Generation,
		Side:        a.Side,
		GreatDegree: a.GreatDegree,
	}
}
