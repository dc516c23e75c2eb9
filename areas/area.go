package areas

import (
	"strings"
)

const WILDCARD = "*"

// AreaName identifies an area of the areas file by its "parent" and
// "name" properties. Either part may be WILDCARD when used as a pattern.
type AreaName struct {
	Parent string
	Name   string
}

func NewAreaName(parent, name string) AreaName {
	return AreaName{Parent: parent, Name: name}
}

func (an AreaName) String() string {
	hasParent := an.Parent != "" && an.Parent != WILDCARD
	switch {
	case hasParent && (an.Name == "" || an.Name == an.Parent):
		return an.Parent
	case hasParent:
		return an.Parent + "/" + an.Name
	case an.Name != "":
		return an.Name
	}
	return "world"
}

func partMatches(pattern, value string) bool {
	return pattern == WILDCARD || pattern == value
}

// Matches reports whether 'an' is selected by any of 'patterns'.
func (an AreaName) Matches(patterns []AreaName) bool {
	for _, pattern := range patterns {
		if partMatches(pattern.Parent, an.Parent) && partMatches(pattern.Name, an.Name) {
			return true
		}
	}
	return false
}

// AreaStringToAreaName parses "Chicago/Loop", "Chicago/*" or "Loop".
// A bare name matches that name under any parent.
func AreaStringToAreaName(area string) AreaName {
	if parent, name, found := strings.Cut(area, "/"); found {
		return NewAreaName(parent, name)
	}
	return NewAreaName(WILDCARD, area)
}

func AreaStringsToAreaNames(areas []string) []AreaName {
	areaNames := make([]AreaName, len(areas))
	for idx, area := range areas {
		areaNames[idx] = AreaStringToAreaName(area)
	}
	return areaNames
}
