package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual host probing.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect resolves the host triple. OS and architecture come from the Go
// runtime; on Linux the system C library is probed to pick the glibc or
// musl ABI; on Windows the active C compiler identity selects the
// msvc or gnu ABI.
func (d *RealDetector) Detect(ctx context.Context) (Triple, error) {
	var libc, compiler string

	switch runtime.GOOS {
	case OSLinux:
		libc = detectLibc(ctx)
	case OSWindows:
		compiler = os.Getenv("CC")
	}

	triple, err := Resolve(runtime.GOOS, runtime.GOARCH, libc, compiler)
	if err != nil {
		return Triple{}, fmt.Errorf("platform detection failed: %w", err)
	}
	return triple, nil
}

// detectLibc identifies the system C library on Linux.
//
// It first asks gopsutil for the distribution family: Alpine is the only
// mainstream musl family. When distribution detection fails it falls
// back to inspecting `ldd --version`, whose banner names musl on
// musl-based systems. Any failure resolves to glibc, which is the
// correct default for every major distribution.
func detectLibc(ctx context.Context) string {
	platformID, family, _, err := host.PlatformInformationWithContext(ctx)
	if err == nil {
		platformID = strings.ToLower(platformID)
		family = strings.ToLower(family)
		if family == "alpine" || platformID == "alpine" {
			return LibcMusl
		}
		if family != "" {
			return LibcGlibc
		}
	}

	// ldd is part of the libc install on both glibc and musl systems.
	// musl's ldd prints "musl libc" in its version banner.
	out, err := exec.CommandContext(ctx, "ldd", "--version").CombinedOutput()
	if err == nil || len(out) > 0 {
		if strings.Contains(strings.ToLower(string(out)), LibcMusl) {
			return LibcMusl
		}
	}

	return LibcGlibc
}
