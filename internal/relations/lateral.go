package relations

import "github.com/suPer8Hu/kinfolk/internal/models"

type sibling struct {
	person *models.Person
	half   bool
	side   Side
}

// siblings finds everyone sharing at least one known parent with p. A sibling
// is half when both people have the other parent recorded and it differs.
func (g *graph) siblings(p *models.Person) []sibling {
	mother, father := models.ParentID(p.MotherID), models.ParentID(p.FatherID)
	if mother == "" && father == "" {
		return nil
	}

	var out []sibling
	for _, c := range g.order {
		if c.ID == p.ID {
			continue
		}
		cm, cf := models.ParentID(c.MotherID), models.ParentID(c.FatherID)
		sharesMother := mother != "" && cm == mother
		sharesFather := father != "" && cf == father
		if !sharesMother && !sharesFather {
			continue
		}

		s := sibling{person: c, side: SideNone}
		switch {
		case sharesMother && !sharesFather && father != "" && cf != "":
			s.half, s.side = true, SideMaternal
		case sharesFather && !sharesMother && mother != "" && cm != "":
			s.half, s.side = true, SidePaternal
		}
		out = append(out, s)
	}
	return out
}

// lateral collects siblings, parents' siblings, first cousins and nieces or
// nephews. Anyone already placed in the report is skipped.
func (g *graph) lateral(home *models.Person, seen map[string]bool) []Kin {
	out := []Kin{}
	add := func(p *models.Person, relation string, gen int, side Side) bool {
		if seen[p.ID] {
			return false
		}
		seen[p.ID] = true
		out = append(out, kinRow(p, relation, gen, side))
		return true
	}

	sibs := g.siblings(home)
	var placedSibs []sibling
	for _, s := range sibs {
		if add(s.person, siblingLabel(s.person.Gender, s.half), 0, s.side) {
			placedSibs = append(placedSibs, s)
		}
	}

	type auntUncle struct {
		person *models.Person
		side   Side
	}
	var aunts []auntUncle
	parents := []struct {
		id   string
		side Side
	}{
		{models.ParentID(home.MotherID), SideMaternal},
		{models.ParentID(home.FatherID), SidePaternal},
	}
	for _, link := range parents {
		parent, ok := g.byID[link.id]
		if !ok {
			continue
		}
		for _, s := range g.siblings(parent) {
			if add(s.person, auntUncleLabel(link.side, s.person.Gender), -1, link.side) {
				aunts = append(aunts, auntUncle{person: s.person, side: link.side})
			}
		}
	}

	for _, au := range aunts {
		for _, c := range g.children[au.person.ID] {
			add(c, cousinLabel(au.side), 0, au.side)
		}
	}

	for _, s := range placedSibs {
		for _, c := range g.children[s.person.ID] {
			add(c, nieceNephewLabel(c.Gender), 1, s.side)
		}
	}
	return out
}
