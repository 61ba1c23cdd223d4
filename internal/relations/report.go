package relations

type Side string

const (
	SidePaternal Side = "Paternal"
	SideMaternal Side = "Maternal"
	SideNone     Side = "N/A"
)

// Ancestor is one row of the ancestry chain. Generation 0 is the home person.
type Ancestor struct {
	PersonID           string `json:"person_id"`
	FullName           string `json:"full_name"`
	Relation           string `json:"relation"`
	Generation         int    `json:"generation"`
	Side               Side   `json:"side"`
	PaternalHaplogroup string `json:"paternal_haplogroup,omitempty"`
	MaternalHaplogroup string `json:"maternal_haplogroup,omitempty"`
	Enslaved           bool   `json:"enslaved"`
	DNAMatch           bool   `json:"dna_match"`
	GreatDegree        int    `json:"great_degree"`
}

// Kin is a descendant or lateral relative. Descendant generations count down
// from the home person (1 = children); lateral generations are relative to it
// (-1 = parents' siblings, 0 = siblings and cousins, 1 = nieces and nephews).
type Kin struct {
	PersonID           string `json:"person_id"`
	FullName           string `json:"full_name"`
	Relation           string `json:"relation"`
	Generation         int    `json:"generation"`
	Side               Side   `json:"side"`
	PaternalHaplogroup string `json:"paternal_haplogroup,omitempty"`
	MaternalHaplogroup string `json:"maternal_haplogroup,omitempty"`
	Enslaved           bool   `json:"enslaved"`
	DNAMatch           bool   `json:"dna_match"`
}

type HaplogroupTrace struct {
	PersonID    string `json:"person_id"`
	FullName    string `json:"full_name"`
	Relation    string `json:"relation"`
	Generation  int    `json:"generation"`
	Side        Side   `json:"side"`
	GreatDegree int    `json:"great_degree"`
	Haplogroup  string `json:"haplogroup"`
}

type EnslavedTrace struct {
	PersonID    string `json:"person_id"`
	FullName    string `json:"full_name"`
	Relation    string `json:"relation"`
	Generation  int    `json:"generation"`
	Side        Side   `json:"side"`
	GreatDegree int    `json:"great_degree"`
}

// Report bundles every view derived for one home person.
type Report struct {
	HomePersonID       string            `json:"home_person_id"`
	Ancestry           []Ancestor        `json:"ancestry"`
	Descendants        []Kin             `json:"descendants"`
	Lateral            []Kin             `json:"lateral"`
	PaternalHaplogroup []HaplogroupTrace `json:"paternal_haplogroup_trace"`
	MaternalHaplogroup []HaplogroupTrace `json:"maternal_haplogroup_trace"`
	PaternalEnslaved   []EnslavedTrace   `json:"paternal_enslaved_trace"`
	MaternalEnslaved   []EnslavedTrace   `json:"maternal_enslaved_trace"`
}

func emptyReport(homeID string) Report {
	return Report{
		HomePersonID:       homeID,
		Ancestry:           []Ancestor{},
		Descendants:        []Kin{},
		Lateral:            []Kin{},
		PaternalHaplogroup: []HaplogroupTrace{},
		MaternalHaplogroup: []HaplogroupTrace{},
		PaternalEnslaved:   []EnslavedTrace{},
		MaternalEnslaved:   []EnslavedTrace{},
	}
}

// Empty reports whether no home person was resolved.
func (r Report) Empty() bool { return r.HomePersonID == "" }
