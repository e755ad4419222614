// Package keywords holds the frozen BESS/permit/planning/grid/negative keyword
// lattice that is the only ground truth for relevance (spec.md §4.2). Terms are
// matched against already-normalized text; matching tolerates a single inserted
// whitespace between any two adjacent characters of a term (PDFs often split
// words across a line or column break) but never bridges multiple words, per
// the Design Note in spec.md §9.
package keywords

import (
	"regexp"
	"strings"
)

// Set is a named, frozen group of terms with a precompiled matcher per term.
type Set struct {
	Name     string
	Terms    []string
	patterns []*regexp.Regexp
}

// compile builds one \s?-tolerant regex per term. Tolerance is inserted only
// between characters of the term itself (not around it), so "spe ic her" still
// matches "speicher" but "ener giespeicher wert" cannot bridge into an
// unrelated word.
func compile(term string) *regexp.Regexp {
	var b strings.Builder
	runes := []rune(term)
	for i, r := range runes {
		b.WriteString(regexp.QuoteMeta(string(r)))
		if i < len(runes)-1 && r != ' ' && runes[i+1] != ' ' {
			b.WriteString(`\s?`)
		}
	}
	return regexp.MustCompile(b.String())
}

func newSet(name string, terms ...string) Set {
	s := Set{Name: name, Terms: terms}
	s.patterns = make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		s.patterns[i] = compile(t)
	}
	return s
}

// Matches reports whether any term in the set occurs in normalized text.
func (s Set) Matches(normText string) bool {
	return len(s.MatchedTerms(normText)) > 0
}

// MatchesAny reports whether normText matches any of the named terms (which
// must belong to this set). Used by the classifier to test for one specific
// term without hand-rolling a new regex.
func (s Set) MatchesAny(normText string, terms ...string) bool {
	for _, want := range terms {
		for i, t := range s.Terms {
			if t == want && s.patterns[i].MatchString(normText) {
				return true
			}
		}
	}
	return false
}

// MatchedTerms returns the subset of the set's terms that occur in normText,
// in the set's declared order.
func (s Set) MatchedTerms(normText string) []string {
	var out []string
	for i, p := range s.patterns {
		if p.MatchString(normText) {
			out = append(out, s.Terms[i])
		}
	}
	return out
}

// EarliestMatch returns the byte offset of the earliest occurrence of any term
// in the set, and the matched term text, or (-1, "") if none match.
func (s Set) EarliestMatch(normText string) (int, string) {
	best := -1
	bestTerm := ""
	for i, p := range s.patterns {
		if loc := p.FindStringIndex(normText); loc != nil {
			if best == -1 || loc[0] < best {
				best = loc[0]
				bestTerm = s.Terms[i]
			}
		}
	}
	return best, bestTerm
}

// Count returns the number of distinct terms in the set that occur in normText.
func (s Set) Count(normText string) int {
	return len(s.MatchedTerms(normText))
}

// AddTerms extends a set with operator-supplied terms at startup (config's
// keyword-lattice override file). The frozen lattice below is never
// rewritten wholesale — this only appends, so every built-in term keeps
// matching exactly as it did before an override file was introduced.
func (s *Set) AddTerms(terms ...string) {
	for _, t := range terms {
		s.Terms = append(s.Terms, t)
		s.patterns = append(s.patterns, compile(t))
	}
}

// The frozen lattice. Case-sensitive against already-lowercased normalized text
// (i.e. effectively case-insensitive against the original).
var (
	BESSExplicit = newSet("BESS_EXPLICIT",
		"batteriespeicher", "energiespeicher", "stromspeicher",
		"battery energy storage", "bess",
	)

	BESSContainerGrid = newSet("BESS_CONTAINER_GRID",
		"containeranlage", "anlage zur energiespeicherung", "lithium", "li-ion",
	)

	PlanningStrong = newSet("PLANNING_STRONG",
		"bebauungsplan", "b-plan", "bauleitplanung",
	)

	PlanningSteps = newSet("PLANNING_STEPS",
		"aufstellungsbeschluss", "fruehzeitige beteiligung", "auslegung", "satzungsbeschluss",
	)

	PermitStrong = newSet("PERMIT_STRONG",
		"bauvorbescheid", "bauvoranfrage", "bauvorantrag", "baugenehmigung",
		"kenntnisnahme", "antrag auf errichtung", "standortgemeinde",
		"einvernehmen §36", "§36",
	)

	GridStrong = newSet("GRID_STRONG",
		"umspannwerk", "110 kv", "220 kv", "380 kv", "hoechstspannung", "hochspannung",
	)

	GridMedium = newSet("GRID_MEDIUM",
		"mittelspannung", "20 kv", "30 kv", "schaltanlage", "trafostation", "netzanschluss",
	)

	NegativeStorage = newSet("NEGATIVE_STORAGE",
		"waermespeicher", "wasserspeicher", "datenspeicher", "gasspeicher",
		"pufferspeicher", "eisspeicher",
	)

	Zoning = newSet("ZONING",
		"sondergebiet", "gewerbegebiet", "industriegebiet", "flaechennutzungsplan",
	)

	EnergyContext = newSet("ENERGY_CONTEXT",
		"pv", "photovoltaik", "wind",
	)

	// ProcedureTerm is the union used by prefilter/classifier rules that ask
	// "does a procedure term occur at all" (spec.md §4.3 R3, §4.4).
	ProcedureTerm = newSet("PROCEDURE_TERM",
		append(append([]string{}, PlanningStrong.Terms...), append(PlanningSteps.Terms, PermitStrong.Terms...)...)...,
	)

	// ContainerTitle flags title text that looks like a gazette/bulletin wrapper
	// rather than a single procedure (spec.md §4.4).
	ContainerTitle = newSet("CONTAINER_TITLE",
		"amtsblatt nr.", "bekanntmachung der stadt", "bekanntmachungsblatt",
	)

	// speicherTerm is the bare word used by Rule R3 (ambiguous-with-grid).
	speicherTerm = newSet("SPEICHER", "speicher")
)

// SpeicherOccurs reports whether the bare term "speicher" occurs in normText,
// used only by classifier Rule R3.
func SpeicherOccurs(normText string) bool {
	return speicherTerm.Matches(normText)
}
