// Package pattern implements the compiled-regex-with-source-text type used
// throughout repository manifests for asset and archive-entry matching.
package pattern

import (
	"fmt"
	"regexp"
)

// Pattern is a compiled regular expression with its original source text
// preserved for diagnostics.
type Pattern struct {
	source   string
	compiled *regexp.Regexp
}

// Compile compiles src as a regular expression, without requiring a
// capture group. Used for simple asset-name filters.
func Compile(src string) (Pattern, error) {
	re, err := regexp.Compile(src)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", src, err)
	}
	return Pattern{source: src, compiled: re}, nil
}

// CompileExtractor compiles src and additionally requires exactly one
// capture group, for patterns used to extract a value. Archive path
// matchers are compiled with Compile and need no capture group.
func CompileExtractor(src string) (Pattern, error) {
	p, err := Compile(src)
	if err != nil {
		return Pattern{}, err
	}
	if n := p.compiled.NumSubexp(); n != 1 {
		return Pattern{}, fmt.Errorf("pattern %q must contain exactly one capture group, has %d", src, n)
	}
	return p, nil
}

// MatchString reports whether s matches the pattern.
func (p Pattern) MatchString(s string) bool {
	if p.compiled == nil {
		return false
	}
	return p.compiled.MatchString(s)
}

// Source returns the original regular expression text, for diagnostics.
func (p Pattern) Source() string {
	return p.source
}

func (p Pattern) String() string {
	return p.source
}

// MarshalText/UnmarshalText let Pattern participate directly in
// encoding/json and gopkg.in/yaml.v3 round-tripping, keeping the source
// text as the on-the-wire representation.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.source), nil
}

func (p *Pattern) UnmarshalText(text []byte) error {
	compiled, err := Compile(string(text))
	if err != nil {
		return err
	}
	*p = compiled
	return nil
}
