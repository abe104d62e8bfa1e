package platform

import (
	"fmt"
	"strings"
)

// archMap maps vendor-specific architecture spellings to canonical tokens.
// Both the Go runtime names and the uname-style names are accepted.
var archMap = map[string]string{
	"amd64":   ArchX8664,
	"x86_64":  ArchX8664,
	"arm64":   ArchAarch64,
	"aarch64": ArchAarch64,
}

// vendorMap maps canonical OS tokens to their triple vendor component.
// Anything not listed uses "unknown".
var vendorMap = map[string]string{
	OSWindows: "pc",
	OSDarwin:  "apple",
}

// Libc identity tokens fed into Resolve on Linux hosts.
const (
	LibcGlibc = "glibc"
	LibcMusl  = "musl"
)

// Resolve maps raw host strings to a canonical Triple.
//
// rawOS and rawArch accept both Go runtime and uname spellings, case
// insensitive. libc is consulted only on Linux ("glibc" or "musl"; empty
// defaults to glibc). compiler is consulted only on Windows: empty or
// "cl.exe" selects the msvc ABI, anything else selects gnu.
func Resolve(rawOS, rawArch, libc, compiler string) (Triple, error) {
	osName, err := normalizeOS(rawOS)
	if err != nil {
		return Triple{}, err
	}

	arch, ok := archMap[strings.ToLower(strings.TrimSpace(rawArch))]
	if !ok {
		return Triple{}, fmt.Errorf("%w: unknown architecture %q", ErrUnsupported, rawArch)
	}

	t := Triple{
		OS:     osName,
		Arch:   arch,
		Vendor: "unknown",
	}
	if vendor, ok := vendorMap[osName]; ok {
		t.Vendor = vendor
	}

	switch osName {
	case OSWindows:
		t.ABI = windowsABI(compiler)
	case OSLinux:
		t.ABI = linuxABI(libc)
	}

	return t, nil
}

// normalizeOS maps raw OS spellings to canonical tokens.
func normalizeOS(rawOS string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(rawOS)) {
	case "windows", "win32":
		return OSWindows, nil
	case "linux":
		return OSLinux, nil
	case "darwin", "macos":
		return OSDarwin, nil
	default:
		return "", fmt.Errorf("%w: unknown operating system %q", ErrUnsupported, rawOS)
	}
}

// windowsABI picks the compiler ABI variant from the active build
// toolchain identity. An unset or MSVC compiler means msvc.
func windowsABI(compiler string) string {
	compiler = strings.ToLower(strings.TrimSpace(compiler))
	if compiler == "" || compiler == "cl.exe" || compiler == "cl" {
		return "msvc"
	}
	return "gnu"
}

// linuxABI distinguishes glibc- from musl-based systems. An unknown
// libc identity falls back to glibc, matching the vast majority of
// distributions.
func linuxABI(libc string) string {
	if strings.Contains(strings.ToLower(libc), LibcMusl) {
		return LibcMusl
	}
	return "gnu"
}
