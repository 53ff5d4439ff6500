package dedup

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Matcher is a compiled pattern. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

// Filter accepts or rejects paths using an optional include pattern and an
// optional exclude pattern. A nil *Filter accepts every textual path.
type Filter struct {
	include Matcher
	exclude Matcher
}

// NewFilter creates a Filter. Either matcher may be nil, meaning
// "include everything" and "exclude nothing" respectively.
func NewFilter(include, exclude Matcher) *Filter {
	return &Filter{include: include, exclude: exclude}
}

// PatternError is returned by CompileFilter for a pattern that does not compile.
type PatternError struct {
	Kind    string // "include" or "exclude"
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// CompileFilter compiles include and exclude regular expressions into a
// Filter. An empty pattern is treated as absent.
func CompileFilter(include, exclude string) (*Filter, error) {
	f := &Filter{}
	if include != "" {
		re, err := regexp.Compile(include)
		if err != nil {
			return nil, &PatternError{Kind: "include", Pattern: include, Err: err}
		}
		f.include = re
	}
	if exclude != "" {
		re, err := regexp.Compile(exclude)
		if err != nil {
			return nil, &PatternError{Kind: "exclude", Pattern: exclude, Err: err}
		}
		f.exclude = re
	}
	return f, nil
}

// Accept reports whether path passes the filter. Paths that are not valid
// UTF-8 are always rejected. Exclude wins over include.
func (f *Filter) Accept(path string) bool {
	if !utf8.ValidString(path) {
		return false
	}
	if f == nil {
		return true
	}
	if f.include != nil && !f.include.MatchString(path) {
		return false
	}
	if f.exclude != nil && f.exclude.MatchString(path) {
		return false
	}
	return true
}
