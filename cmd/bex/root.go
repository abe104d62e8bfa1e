package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Lucino772/bex/internal/bootstrap"
	"github.com/Lucino772/bex/internal/descriptor"
	"github.com/Lucino772/bex/internal/entrypoint"
	"github.com/Lucino772/bex/internal/uv"
	"github.com/Lucino772/bex/internal/venv"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Exit codes. Cancellation is distinguished from failures so callers
// can tell an interrupted run from a broken one.
const (
	exitOK        = 0
	exitError     = 1
	exitCancelled = 3
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var (
	fileFlag      string
	directoryFlag string
	bootstrapOnly bool
	showVersion   bool
)

var rootCmd = &cobra.Command{
	Use:   "bex [COMMAND] [ARGS]...",
	Short: "Bootstrap isolated python environments and run their entrypoint",
	Long: `bex reads a descriptor file, downloads the uv toolchain for the
current platform, builds an isolated python virtual environment from
the declared requirements, and hands control over to the descriptor's
entrypoint. Any trailing command and arguments are forwarded to it.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "path to the descriptor file")
	rootCmd.Flags().StringVarP(&directoryFlag, "directory", "C", "", "directory containing the descriptor")
	rootCmd.Flags().BoolVarP(&bootstrapOnly, "bootstrap-only", "b", false, "build the environment without running the entrypoint")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")

	// Flags after the first positional argument belong to the
	// entrypoint, not to bex.
	rootCmd.Flags().SetInterspersed(false)
}

// exitCodeError carries an exit code through cobra's error return.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		cancel(fmt.Errorf("received signal %v", sig))
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var codeErr *exitCodeError
	if errors.As(err, &codeErr) {
		return codeErr.code
	}

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Process was cancelled"))
		return exitCancelled
	}

	fmt.Fprintln(os.Stderr, errorStyle.Render(renderError(err)))
	return exitError
}

// renderError maps pipeline failures onto the messages shown to the
// user, keeping the underlying detail attached.
func renderError(err error) string {
	switch {
	case errors.Is(err, venv.ErrCreate), errors.Is(err, venv.ErrLock), errors.Is(err, venv.ErrSync):
		return fmt.Sprintf("Error while creating virtual environment: %v", err)
	case errors.Is(err, uv.ErrVersionResolution), errors.Is(err, uv.ErrDownload), errors.Is(err, uv.ErrExtract):
		return fmt.Sprintf("Error while downloading uv: %v", err)
	case errors.Is(err, descriptor.ErrNotFound), errors.Is(err, descriptor.ErrInvalid):
		return err.Error()
	case errors.Is(err, entrypoint.ErrInvalid):
		return err.Error()
	default:
		return fmt.Sprintf("Failed to bootstrap environment: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("Bex: %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		return nil
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	desc, err := descriptor.Load(directoryFlag, fileFlag)
	if err != nil {
		return err
	}

	orch := bootstrap.NewOrchestrator(bootstrap.WithLogger(logger))
	pythonBin, err := orch.EnsureReady(cmd.Context(), desc)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, successStyle.Render("Environment bootstrapped successfully"))

	if bootstrapOnly {
		return nil
	}

	opts, err := entrypoint.Translate(desc.Entrypoint)
	if err != nil {
		return err
	}

	argv := append([]string{pythonBin}, opts...)
	argv = append(argv, args...)

	env := append(os.Environ(),
		"BEX_FILE="+desc.FilePath,
		"BEX_DIRECTORY="+desc.Directory,
	)

	code, err := execProgram(pythonBin, argv, env)
	if err != nil {
		return fmt.Errorf("run entrypoint: %w", err)
	}
	if code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}
