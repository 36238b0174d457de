package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayVersion(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"1.2.3":         "1.2.3",
		"v1.2.3":        "1.2.3",
		"V2.0":          "2.0",
		"version-1.2.3": "1.2.3",
		"release-1.2.3": "1.2.3",
		"jq-1.7":        "1.7",
		"tool_2.0":      "2.0",
		"1.0.0-release": "1.0.0",
		" v3.1 ":        "3.1",
		// A suffix that does not read as a version is left alone.
		"1.0.0-beta": "1.0.0-beta",
	}
	for in, want := range cases {
		assert.Equal(t, want, DisplayVersion(in), "DisplayVersion(%q)", in)
	}
}
