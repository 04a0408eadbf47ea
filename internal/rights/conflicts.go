package rights

import (
	"slices"
	"strings"
)

const reasonExclusiveOverlap = "both rights are exclusive for the same type, territory and language"

type (
	// Conflict flags two exclusive rights granted for the same scope.
	Conflict struct {
		RightID            string `json:"rightId"`
		ConflictingRightID string `json:"conflictingRightId"`
		RightType          string `json:"rightType"`
		Territory          string `json:"territory"`
		Language           string `json:"language"`
		Reason             string `json:"reason"`
	}

	// CoverageGroup lists the rights sharing one (type, territory, language) scope.
	CoverageGroup struct {
		RightType string   `json:"rightType"`
		Territory string   `json:"territory"`
		Language  string   `json:"language"`
		RightIDs  []string `json:"rightIds"`
		Exclusive int      `json:"exclusive"`
	}

	// Coverage summarises where a catalogue's rights are held.
	Coverage struct {
		TotalRights    int             `json:"totalRights"`
		ActiveRights   int             `json:"activeRights"`
		ExclusiveCount int             `json:"exclusiveCount"`
		ByTerritory    map[string]int  `json:"byTerritory"`
		ByRightType    map[string]int  `json:"byRightType"`
		ByLanguage     map[string]int  `json:"byLanguage"`
		Territories    []TerritoryInfo `json:"territories"`
		Groups         []CoverageGroup `json:"groups"`
		Conflicts      []Conflict      `json:"conflicts"`
	}
)

// DetectConflicts compares every pair of rights and reports each pair that shares
// right type, territory and language while both are exclusive.
//
// Matching is exact: a US right and a WORLD right for the same type do not conflict
// here even though their territories overlap.
func DetectConflicts(list []*Right) []Conflict {
	conflicts := []Conflict{}

	for i := 0; i < len(list); i++ {
		a := list[i]
		if a == nil || !a.Exclusive {
			continue
		}

		for j := i + 1; j < len(list); j++ {
			b := list[j]
			if b == nil || !b.Exclusive || a.ID == b.ID {
				continue
			}

			if sameScope(a, b) {
				conflicts = append(conflicts, Conflict{
					RightID:            a.ID,
					ConflictingRightID: b.ID,
					RightType:          a.RightType,
					Territory:          a.Territory,
					Language:           a.Language,
					Reason:             reasonExclusiveOverlap,
				})
			}
		}
	}

	return conflicts
}

// AnalyzeCoverage groups rights by scope and counts them per territory, type and language.
func AnalyzeCoverage(list []*Right) Coverage {
	cov := Coverage{
		ByTerritory: map[string]int{},
		ByRightType: map[string]int{},
		ByLanguage:  map[string]int{},
		Territories: []TerritoryInfo{},
		Groups:      []CoverageGroup{},
	}

	groups := map[string]*CoverageGroup{}
	order := []string{}

	for _, r := range list {
		if r == nil {
			continue
		}

		cov.TotalRights++
		cov.ByTerritory[r.Territory]++
		cov.ByRightType[r.RightType]++
		cov.ByLanguage[r.Language]++

		if r.IsActive {
			cov.ActiveRights++
		}

		if r.Exclusive {
			cov.ExclusiveCount++
		}

		key := scopeKey(r)

		g, ok := groups[key]
		if !ok {
			g = &CoverageGroup{RightType: r.RightType, Territory: r.Territory, Language: r.Language}
			groups[key] = g
			order = append(order, key)
		}

		g.RightIDs = append(g.RightIDs, r.ID)

		if r.Exclusive {
			g.Exclusive++
		}
	}

	for _, key := range order {
		cov.Groups = append(cov.Groups, *groups[key])
	}

	territoryCodes := make([]string, 0, len(cov.ByTerritory))
	for code := range cov.ByTerritory {
		territoryCodes = append(territoryCodes, code)
	}

	slices.Sort(territoryCodes)

	for _, code := range territoryCodes {
		cov.Territories = append(cov.Territories, LookupTerritory(code))
	}

	cov.Conflicts = DetectConflicts(list)

	return cov
}

func sameScope(a, b *Right) bool {
	return a.RightType == b.RightType && a.Territory == b.Territory && a.Language == b.Language
}

func scopeKey(r *Right) string {
	return strings.Join([]string{r.RightType, r.Territory, r.Language}, "\x00")
}
