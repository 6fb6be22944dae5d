package vr

import (
	"regexp"
)

// Filter selects names by a regular expression anchored at the start,
// minus any matching an exclusion pattern.  Exclusions match
// case-insensitively anywhere in the name.
type Filter struct {
	pattern    *regexp.Regexp
	exclusions []*regexp.Regexp
}

// NewFilter compiles a filter from its pattern and exclusions.
func NewFilter(pattern string, exclusions ...string) (*Filter, error) {
	anchored, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, err
	}
	f := &Filter{pattern: anchored}
	for _, excl := range exclusions {
		re, err := regexp.Compile("(?i)" + excl)
		if err != nil {
			return nil, err
		}
		f.exclusions = append(f.exclusions, re)
	}
	return f, nil
}

// Match reports whether name passes the filter.
func (f *Filter) Match(name string) bool {
	for _, excl := range f.exclusions {
		if excl.MatchString(name) {
			return false
		}
	}
	return f.pattern.MatchString(name)
}

// Swarms returns the swarms whose names pass the filter.
func (f *Filter) Swarms(swarms []*Swarm) []*Swarm {
	var matched []*Swarm
	for _, swarm := range swarms {
		if f.Match(swarm.Name()) {
			matched = append(matched, swarm)
		}
	}
	return matched
}
