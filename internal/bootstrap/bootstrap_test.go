package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lucino772/bex/internal/descriptor"
	"github.com/Lucino772/bex/internal/download"
	"github.com/Lucino772/bex/internal/process"
	"github.com/Lucino772/bex/internal/venv"
)

type fakeResolver struct {
	calls   int
	version string
	err     error
}

func (r *fakeResolver) Resolve(ctx context.Context, pinned string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if pinned != "" {
		return pinned, nil
	}
	return r.version, nil
}

type fakeAcquirer struct {
	calls    int
	cacheDir string
	version  string
	err      error
}

func (a *fakeAcquirer) Acquire(ctx context.Context, cacheDir, version string, onProgress download.ProgressFunc) (string, error) {
	a.calls++
	a.cacheDir = cacheDir
	a.version = version
	if a.err != nil {
		return "", a.err
	}
	return filepath.Join(cacheDir, "uv-"+version), nil
}

type fakeBuilder struct {
	calls        int
	rootDir      string
	uvBin        string
	pythonSpec   string
	requirements string
	err          error
}

func (b *fakeBuilder) Build(ctx context.Context, rootDir, uvBin, pythonSpec, requirements string, onLine process.LineFunc) (string, error) {
	b.calls++
	b.rootDir = rootDir
	b.uvBin = uvBin
	b.pythonSpec = pythonSpec
	b.requirements = requirements
	if b.err != nil {
		return "", b.err
	}
	return venv.PythonPath(rootDir), nil
}

func writeTestDescriptor(t *testing.T, content string) *descriptor.Descriptor {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bex.py")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	return &descriptor.Descriptor{
		Directory:      dir,
		FilePath:       path,
		RequiresPython: "3.12",
		Requirements:   "requests\n",
		Entrypoint:     "app:main",
	}
}

func newTestOrchestrator(resolver *fakeResolver, acquirer *fakeAcquirer, builder *fakeBuilder) *Orchestrator {
	return NewOrchestrator(
		WithResolver(resolver),
		WithAcquirer(acquirer),
		WithBuilder(builder),
	)
}

func TestEnsureReadyRunsFullPipeline(t *testing.T) {
	desc := writeTestDescriptor(t, "content-v1")
	desc.UVVersion = "0.4.18"

	resolver := &fakeResolver{}
	acquirer := &fakeAcquirer{}
	builder := &fakeBuilder{}
	orch := newTestOrchestrator(resolver, acquirer, builder)

	pythonBin, err := orch.EnsureReady(context.Background(), desc)
	if err != nil {
		t.Fatalf("ensure ready: %v", err)
	}

	workDir := filepath.Join(desc.Directory, WorkDirName)
	if pythonBin != venv.PythonPath(workDir) {
		t.Errorf("python path = %q, want %q", pythonBin, venv.PythonPath(workDir))
	}
	if acquirer.version != "0.4.18" {
		t.Errorf("acquired version = %q, want pinned 0.4.18", acquirer.version)
	}
	if acquirer.cacheDir != filepath.Join(workDir, "cache", "uv") {
		t.Errorf("cache dir = %q", acquirer.cacheDir)
	}
	if builder.rootDir != workDir {
		t.Errorf("builder root = %q, want %q", builder.rootDir, workDir)
	}
	if builder.pythonSpec != "3.12" || builder.requirements != "requests\n" {
		t.Errorf("builder got spec %q requirements %q", builder.pythonSpec, builder.requirements)
	}

	if _, err := os.Stat(filepath.Join(workDir, envHashFileName)); err != nil {
		t.Errorf("fingerprint file not persisted: %v", err)
	}
}

func TestEnsureReadySkipsWhenUnchanged(t *testing.T) {
	desc := writeTestDescriptor(t, "content-v1")

	resolver := &fakeResolver{version: "1.0.0"}
	acquirer := &fakeAcquirer{}
	builder := &fakeBuilder{}
	orch := newTestOrchestrator(resolver, acquirer, builder)

	first, err := orch.EnsureReady(context.Background(), desc)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := orch.EnsureReady(context.Background(), desc)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first != second {
		t.Errorf("python path changed across runs: %q vs %q", first, second)
	}
	if resolver.calls != 1 || acquirer.calls != 1 || builder.calls != 1 {
		t.Errorf("second run did work: resolver=%d acquirer=%d builder=%d",
			resolver.calls, acquirer.calls, builder.calls)
	}
}

func TestEnsureReadyRebuildsOnDescriptorChange(t *testing.T) {
	desc := writeTestDescriptor(t, "content-v1")

	resolver := &fakeResolver{version: "1.0.0"}
	acquirer := &fakeAcquirer{}
	builder := &fakeBuilder{}
	orch := newTestOrchestrator(resolver, acquirer, builder)

	if _, err := orch.EnsureReady(context.Background(), desc); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if err := os.WriteFile(desc.FilePath, []byte("content-v2"), 0644); err != nil {
		t.Fatalf("rewrite descriptor: %v", err)
	}
	if _, err := orch.EnsureReady(context.Background(), desc); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if builder.calls != 2 {
		t.Errorf("builder calls = %d, want 2 after descriptor change", builder.calls)
	}
}

func TestEnsureReadyNoFingerprintOnFailure(t *testing.T) {
	desc := writeTestDescriptor(t, "content-v1")

	buildErr := errors.New("sync failed")
	resolver := &fakeResolver{version: "1.0.0"}
	acquirer := &fakeAcquirer{}
	builder := &fakeBuilder{err: buildErr}
	orch := newTestOrchestrator(resolver, acquirer, builder)

	if _, err := orch.EnsureReady(context.Background(), desc); !errors.Is(err, buildErr) {
		t.Fatalf("error = %v, want %v", err, buildErr)
	}

	hashFile := filepath.Join(desc.Directory, WorkDirName, envHashFileName)
	if _, err := os.Stat(hashFile); !os.IsNotExist(err) {
		t.Errorf("fingerprint persisted despite failed build")
	}

	// A later successful run must redo everything.
	builder.err = nil
	if _, err := orch.EnsureReady(context.Background(), desc); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if builder.calls != 2 {
		t.Errorf("builder calls = %d, want 2", builder.calls)
	}
}

func TestEnsureReadyResolverFailureStopsPipeline(t *testing.T) {
	desc := writeTestDescriptor(t, "content-v1")

	resolveErr := errors.New("index unavailable")
	resolver := &fakeResolver{err: resolveErr}
	acquirer := &fakeAcquirer{}
	builder := &fakeBuilder{}
	orch := newTestOrchestrator(resolver, acquirer, builder)

	if _, err := orch.EnsureReady(context.Background(), desc); !errors.Is(err, resolveErr) {
		t.Fatalf("error = %v, want %v", err, resolveErr)
	}
	if acquirer.calls != 0 || builder.calls != 0 {
		t.Errorf("pipeline continued after resolve failure: acquirer=%d builder=%d",
			acquirer.calls, builder.calls)
	}
}
