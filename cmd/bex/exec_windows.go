//go:build windows

package main

import (
	"errors"
	"os"
	"os/exec"
)

// execProgram runs the entrypoint as a child process with inherited
// standard streams and reports its exit code.
func execProgram(program string, argv, env []string) (int, error) {
	cmd := exec.Command(program, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, err
	}
	return 0, nil
}
