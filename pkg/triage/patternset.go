package triage

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternSet is the compiled disjunction of all configured patterns.
type PatternSet struct {
	patterns []string
	combined *regexp.Regexp
}

// BuildPatternSet compiles patterns into a single matcher. Patterns are kept verbatim, so an
// empty pattern matches every text. Every pattern must compile on its own; an empty list is rejected.
func BuildPatternSet(patterns []string) (*PatternSet, error) {
	if len(patterns) == 0 {
		return nil, NewConfigError("patterns", ErrEmptyPatternSet)
	}

	kept := make([]string, 0, len(patterns))
	for i, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, NewConfigError(fmt.Sprintf("patterns[%d]", i), fmt.Errorf("invalid regular expression %q: %w", p, err))
		}
		kept = append(kept, p)
	}

	groups := make([]string, len(kept))
	for i, p := range kept {
		groups[i] = "(?:" + p + ")"
	}

	combined, err := regexp.Compile(strings.Join(groups, "|"))
	if err != nil {
		return nil, NewConfigError("patterns", fmt.Errorf("failed to compile combined pattern: %w", err))
	}

	return &PatternSet{
		patterns: kept,
		combined: combined,
	}, nil
}

// Matches reports whether any pattern matches a substring of text.
func (ps *PatternSet) Matches(text string) bool {
	return ps.combined.MatchString(text)
}

// Source returns the combined alternation used for matching.
func (ps *PatternSet) Source() string {
	return ps.combined.String()
}

// Patterns returns the configured patterns in order.
func (ps *PatternSet) Patterns() []string {
	return append([]string(nil), ps.patterns...)
}

// Len returns the number of patterns in the set.
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}
