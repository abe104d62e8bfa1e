// Package venv builds the isolated python environment by driving the uv
// binary through a fixed three-step protocol: create the environment,
// lock the dependency spec, and sync the locked set into the
// environment.
package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Lucino772/bex/internal/process"
)

// File and directory names under the build root.
const (
	VenvDirName         = ".venv"
	RequirementsInName  = "requirements.in"
	RequirementsTxtName = "requirements.txt"
)

var (
	// ErrCreate is returned when the isolated environment cannot be
	// created.
	ErrCreate = errors.New("failed to create python virtual environment")
	// ErrLock is returned when the dependency spec cannot be compiled
	// into a lock file.
	ErrLock = errors.New("failed to compile pip requirements")
	// ErrSync is returned when the locked dependencies cannot be
	// installed into the environment.
	ErrSync = errors.New("failed to sync pip requirements")
)

// Runner executes one supervised command to completion.
// *process.Supervisor satisfies it.
type Runner interface {
	Run(ctx context.Context, args []string, onLine process.LineFunc) (int, error)
}

// Builder drives the environment build protocol.
type Builder struct {
	runner Runner
}

// NewBuilder creates a Builder backed by a process supervisor.
func NewBuilder() *Builder {
	return &Builder{runner: process.NewSupervisor()}
}

// NewBuilderWithRunner creates a Builder with a custom runner,
// primarily for tests.
func NewBuilderWithRunner(runner Runner) *Builder {
	return &Builder{runner: runner}
}

// PythonPath returns the deterministic path of the built environment's
// python executable under rootDir.
func PythonPath(rootDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(rootDir, VenvDirName, "Scripts", "python.exe")
	}
	return filepath.Join(rootDir, VenvDirName, "bin", "python")
}

// Build materializes the environment under rootDir using the uv binary
// at uvBin: a managed python matching pythonSpec is installed into
// rootDir/.venv, requirements is written verbatim to requirements.in
// and locked into requirements.txt, and the locked set is synced into
// the environment. An empty dependency set is allowed.
//
// Step output is forwarded to onLine and never parsed for control
// decisions. Each step failure maps to its own error kind and aborts
// the protocol; side effects of completed steps are left in place.
// Returns the path of the environment's python executable.
func (b *Builder) Build(ctx context.Context, rootDir, uvBin, pythonSpec, requirements string, onLine process.LineFunc) (string, error) {
	venvDir := filepath.Join(rootDir, VenvDirName)
	requirementsIn := filepath.Join(rootDir, RequirementsInName)
	requirementsTxt := filepath.Join(rootDir, RequirementsTxtName)
	pythonBin := PythonPath(rootDir)

	createArgs := []string{
		uvBin, "venv",
		"--allow-existing",
		"--no-project",
		"--seed",
		"--python", pythonSpec,
		"--python-preference", "only-managed",
		venvDir,
	}
	if err := b.runStep(ctx, createArgs, onLine, ErrCreate); err != nil {
		return "", err
	}

	if err := os.WriteFile(requirementsIn, []byte(requirements), 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLock, err)
	}
	lockArgs := []string{
		uvBin, "pip", "compile",
		"--python", pythonBin,
		"--emit-index-url",
		requirementsIn,
		"-o", requirementsTxt,
	}
	if err := b.runStep(ctx, lockArgs, onLine, ErrLock); err != nil {
		return "", err
	}

	syncArgs := []string{
		uvBin, "pip", "sync",
		"--allow-empty-requirements",
		"--python", pythonBin,
		requirementsTxt,
	}
	if err := b.runStep(ctx, syncArgs, onLine, ErrSync); err != nil {
		return "", err
	}

	return pythonBin, nil
}

// runStep runs one protocol step, mapping any failure to the step's
// error kind. Cancellation takes precedence and passes through
// unwrapped.
func (b *Builder) runStep(ctx context.Context, args []string, onLine process.LineFunc, stepErr error) error {
	code, err := b.runner.Run(ctx, args, onLine)
	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return fmt.Errorf("%w: %v", stepErr, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: exit status %d", stepErr, code)
	}
	return nil
}
