// Package platform selects the (os, cpu-arch) entry relevant to the host
// from a platform-keyed table.
package platform

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
)

// OS is one of the two operating systems this manager installs binaries for.
type OS string

const (
	Linux   OS = "linux"
	Windows OS = "windows"
)

// Arch is one of the two CPU architectures this manager installs binaries for.
type Arch string

const (
	X86_64  Arch = "x86_64"
	Aarch64 Arch = "aarch64"
)

// Platform is the pair (system, cpu_arch). The host platform is a
// process-wide constant, captured once at the command entry point.
type Platform struct {
	OS   OS   `json:"os" yaml:"os"`
	Arch Arch `json:"arch" yaml:"arch"`
}

// String returns a canonical representation, e.g. "linux-x86_64".
func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.OS, p.Arch)
}

func (p Platform) IsWindows() bool {
	return p.OS == Windows
}

// BinaryExtension returns the extension binaries carry on this platform.
func (p Platform) BinaryExtension() string {
	if p.IsWindows() {
		return ".exe"
	}
	return ""
}

var (
	globalOverride   *Platform
	globalOverrideMu sync.RWMutex
)

// SetOverride forces Current() to return a fixed platform, for tests and
// for the CLI's --os/--arch flags.
func SetOverride(p *Platform) {
	globalOverrideMu.Lock()
	defer globalOverrideMu.Unlock()
	globalOverride = p
}

// Current returns the host platform, honouring any override set via
// SetOverride, and otherwise derived from runtime.GOOS/GOARCH. The rest of
// the engine receives a Platform value explicitly (design note: no
// deep-call-chain reads of global state).
func Current() Platform {
	globalOverrideMu.RLock()
	defer globalOverrideMu.RUnlock()
	if globalOverride != nil {
		return *globalOverride
	}
	return Platform{OS: normalizeOS(runtime.GOOS), Arch: normalizeArch(runtime.GOARCH)}
}

func normalizeOS(os string) OS {
	switch strings.ToLower(os) {
	case "windows", "win", "win32", "win64":
		return Windows
	default:
		return Linux
	}
}

func normalizeArch(arch string) Arch {
	switch strings.ToLower(arch) {
	case "arm64", "aarch64":
		return Aarch64
	default:
		return X86_64
	}
}

// Parse parses a "os-arch" string into a Platform, normalising common
// spellings (amd64/x86_64, arm64/aarch64) to the canonical forms.
func Parse(s string) (Platform, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Platform{}, fmt.Errorf("invalid platform format: %s (expected os-arch)", s)
	}
	return Platform{OS: normalizeOS(parts[0]), Arch: normalizeArch(parts[1])}, nil
}

// All returns the four platforms a PlatformTable may be keyed by.
func All() []Platform {
	return []Platform{
		{OS: Linux, Arch: X86_64},
		{OS: Linux, Arch: Aarch64},
		{OS: Windows, Arch: X86_64},
		{OS: Windows, Arch: Aarch64},
	}
}

// Table maps a Platform to a value of type T. It is built once during
// repository ingestion: decoding rejects two keys that name the same
// platform, and Select reports a missing key as an error.
type Table[T any] struct {
	entries map[Platform]T
}

// NewTable builds a Table from pairs. Its keys are Platform values, so no
// platform can appear twice.
func NewTable[T any](pairs map[Platform]T) *Table[T] {
	t := &Table[T]{entries: make(map[Platform]T, len(pairs))}
	for k, v := range pairs {
		t.entries[k] = v
	}
	return t
}

// Set adds or overwrites an entry.
func (t *Table[T]) Set(p Platform, v T) {
	if t.entries == nil {
		t.entries = make(map[Platform]T)
	}
	t.entries[p] = v
}

// Len reports the number of platform entries.
func (t *Table[T]) Len() int {
	return len(t.entries)
}

// Select returns the value for the exact host platform key, or
// depserrors.UnsupportedPlatform if absent.
func (t *Table[T]) Select(host Platform) (T, error) {
	var zero T
	if t == nil {
		return zero, depserrors.UnsupportedPlatform{Host: host.String()}
	}
	v, ok := t.entries[host]
	if !ok {
		return zero, depserrors.UnsupportedPlatform{Host: host.String(), Known: t.knownKeys()}
	}
	return v, nil
}

func (t *Table[T]) knownKeys() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}

// Values returns every entry's value, in a deterministic (sorted-by-key)
// order, for ingestion-time validation passes that must look inside the
// table without reaching into its private map.
func (t *Table[T]) Values() []T {
	if t == nil {
		return nil
	}
	keys := make([]Platform, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.entries[k])
	}
	return out
}

// asStringMap/fromStringMap back the JSON/YAML codecs: a Table[T] is keyed
// by a struct (Platform), which neither encoding can use as a map key
// directly, so the wire representation is map[string]T keyed by Platform's
// canonical "os-arch" string.
func (t Table[T]) asStringMap() map[string]T {
	m := make(map[string]T, len(t.entries))
	for k, v := range t.entries {
		m[k.String()] = v
	}
	return m
}

func (t *Table[T]) fromStringMap(m map[string]T) error {
	entries := make(map[Platform]T, len(m))
	for k, v := range m {
		p, err := Parse(k)
		if err != nil {
			return fmt.Errorf("platform table key %q: %w", k, err)
		}
		if _, dup := entries[p]; dup {
			return fmt.Errorf("platform table key %q: duplicate entry for %s", k, p)
		}
		entries[p] = v
	}
	t.entries = entries
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Table[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.asStringMap())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Table[T]) UnmarshalJSON(data []byte) error {
	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	return t.fromStringMap(m)
}

// MarshalYAML implements yaml.Marshaler (gopkg.in/yaml.v3).
func (t Table[T]) MarshalYAML() (interface{}, error) {
	return t.asStringMap(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler (gopkg.in/yaml.v3).
func (t *Table[T]) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]T
	if err := value.Decode(&m); err != nil {
		return err
	}
	return t.fromStringMap(m)
}
