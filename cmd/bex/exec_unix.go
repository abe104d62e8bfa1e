//go:build !windows

package main

import "syscall"

// execProgram replaces the current process with the entrypoint. It
// only returns when the exec itself fails.
func execProgram(program string, argv, env []string) (int, error) {
	if err := syscall.Exec(program, argv, env); err != nil {
		return 0, err
	}
	// Unreachable, Exec does not return on success.
	return 0, nil
}
