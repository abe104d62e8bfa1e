// Package platform derives the host target triple used to select uv
// release artifacts.
//
// The triple follows the {arch}-{vendor}-{os}[-{abi}] convention used by
// the uv release archives (e.g. "x86_64-unknown-linux-gnu",
// "aarch64-apple-darwin"). Resolution is pure and deterministic: all
// host-specific inputs (raw OS/arch spellings, libc identity, compiler
// identity) are passed in as strings, so tests can exercise every
// mapping without touching the host.
package platform

import (
	"context"
	"errors"
	"strings"
)

// Supported operating system tokens.
const (
	OSWindows = "windows"
	OSLinux   = "linux"
	OSDarwin  = "darwin"
)

// Supported architecture tokens.
const (
	ArchX8664   = "x86_64"
	ArchAarch64 = "aarch64"
)

// ErrUnsupported is returned when the host OS/arch combination has no
// published uv artifact.
var ErrUnsupported = errors.New("unsupported platform")

// Triple identifies a release artifact target.
// ABI is empty on platforms that carry no ABI suffix (macOS).
type Triple struct {
	OS     string // "windows", "linux", "darwin"
	Arch   string // "x86_64", "aarch64"
	Vendor string // "pc", "apple", "unknown"
	ABI    string // "msvc", "gnu", "musl", or ""
}

// String renders the triple in artifact order: arch-vendor-os[-abi].
func (t Triple) String() string {
	parts := []string{t.Arch, t.Vendor, t.OS}
	if t.ABI != "" {
		parts = append(parts, t.ABI)
	}
	return strings.Join(parts, "-")
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (Triple, error)
}
