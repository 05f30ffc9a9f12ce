package service

import "sort"

// SpecialityAliases resolves which speciality codes the portal treats as
// the same speciality (e.g. paid and free variants of one clinic). Both
// booking and tracking key appointment links by the canonical group id.
type SpecialityAliases struct {
	groups map[string][]string
}

// NewSpecialityAliases builds the resolver from the configured map of
// code to equivalent codes.
func NewSpecialityAliases(groups map[string][]string) *SpecialityAliases {
	return &SpecialityAliases{groups: groups}
}

// Group returns every code equivalent to the given one, itself included,
// sorted.
func (a *SpecialityAliases) Group(code string) []string {
	seen := map[string]struct{}{code: {}}
	result := []string{code}
	if a != nil {
		for _, alias := range a.groups[code] {
			if _, ok := seen[alias]; ok {
				continue
			}
			seen[alias] = struct{}{}
			result = append(result, alias)
		}
	}
	sort.Strings(result)
	return result
}

// Canonical is the stable identifier of the group: its smallest member.
func (a *SpecialityAliases) Canonical(code string) string {
	return a.Group(code)[0]
}
