// Package bootstrap coordinates toolchain acquisition and virtual
// environment construction for one descriptor.
//
// All engine state lives under a .bex directory next to the
// descriptor. A fingerprint of the descriptor bytes is persisted
// there so unchanged descriptors skip the whole pipeline.
package bootstrap

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Lucino772/bex/internal/descriptor"
	"github.com/Lucino772/bex/internal/download"
	"github.com/Lucino772/bex/internal/process"
	"github.com/Lucino772/bex/internal/uv"
	"github.com/Lucino772/bex/internal/venv"
)

const (
	// WorkDirName is the engine state directory created next to the
	// descriptor file.
	WorkDirName = ".bex"

	envHashFileName = ".envhash"
)

// VersionResolver resolves the toolchain version to install.
type VersionResolver interface {
	Resolve(ctx context.Context, pinned string) (string, error)
}

// ToolAcquirer places a toolchain binary in the cache directory and
// returns its path.
type ToolAcquirer interface {
	Acquire(ctx context.Context, cacheDir, version string, onProgress download.ProgressFunc) (string, error)
}

// EnvBuilder creates and synchronizes the virtual environment under
// the work directory.
type EnvBuilder interface {
	Build(ctx context.Context, rootDir, uvBin, pythonSpec, requirements string, onLine process.LineFunc) (string, error)
}

// Orchestrator runs the bootstrap pipeline for a descriptor.
type Orchestrator struct {
	resolver   VersionResolver
	acquirer   ToolAcquirer
	builder    EnvBuilder
	logger     *log.Logger
	onProgress download.ProgressFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver replaces the version resolver.
func WithResolver(r VersionResolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithAcquirer replaces the toolchain acquirer.
func WithAcquirer(a ToolAcquirer) Option {
	return func(o *Orchestrator) { o.acquirer = a }
}

// WithBuilder replaces the environment builder.
func WithBuilder(b EnvBuilder) Option {
	return func(o *Orchestrator) { o.builder = b }
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithProgress sets a callback receiving toolchain download progress.
func WithProgress(fn download.ProgressFunc) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// NewOrchestrator creates an orchestrator wired to the real resolver,
// acquirer and builder.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: uv.NewResolver(),
		acquirer: uv.NewAcquirer(),
		builder:  venv.NewBuilder(),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnsureReady makes sure the descriptor's environment exists and is in
// sync, and returns the path to its python interpreter.
//
// When the persisted fingerprint matches the current descriptor bytes
// the environment is trusted as-is and no network or subprocess work
// happens.
func (o *Orchestrator) EnsureReady(ctx context.Context, desc *descriptor.Descriptor) (string, error) {
	workDir := filepath.Join(desc.Directory, WorkDirName)
	if err := os.Mkdir(workDir, 0755); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("create work directory: %w", err)
	}

	hash := o.descriptorHash(desc.FilePath)
	hashFile := filepath.Join(workDir, envHashFileName)
	if hash != "" && fingerprintMatches(hashFile, hash) {
		o.logger.Debug("environment up to date", "dir", workDir)
		return venv.PythonPath(workDir), nil
	}

	version, err := o.resolver.Resolve(ctx, desc.UVVersion)
	if err != nil {
		return "", err
	}

	cacheDir := filepath.Join(workDir, "cache", "uv")
	uvBin, err := o.acquirer.Acquire(ctx, cacheDir, version, o.onProgress)
	if err != nil {
		return "", err
	}
	o.logger.Info("downloaded uv", "version", version)

	pythonBin, err := o.builder.Build(ctx, workDir, uvBin, desc.RequiresPython, desc.Requirements, func(line string) {
		o.logger.Debug(line)
	})
	if err != nil {
		return "", err
	}

	// A failure to persist the fingerprint only costs a rebuild on the
	// next run, so it is reported but not fatal.
	if hash != "" {
		if err := os.WriteFile(hashFile, []byte(hash), 0644); err != nil {
			o.logger.Warn("could not persist environment fingerprint", "err", err)
		}
	}

	return pythonBin, nil
}

// descriptorHash fingerprints the descriptor file contents. An
// unreadable descriptor yields an empty hash, which disables the
// skip path for this run.
func (o *Orchestrator) descriptorHash(filePath string) string {
	data, err := os.ReadFile(filePath)
	if err != nil {
		o.logger.Warn("could not fingerprint descriptor", "err", err)
		return ""
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func fingerprintMatches(hashFile, hash string) bool {
	data, err := os.ReadFile(hashFile)
	if err != nil {
		return false
	}
	return string(data) == hash
}
