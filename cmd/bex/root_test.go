package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Lucino772/bex/internal/descriptor"
	"github.com/Lucino772/bex/internal/uv"
	"github.com/Lucino772/bex/internal/venv"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "venv_failure",
			err:  fmt.Errorf("%w: exit status 2", venv.ErrSync),
			want: "Error while creating virtual environment",
		},
		{
			name: "uv_download_failure",
			err:  fmt.Errorf("%w: unexpected status 404", uv.ErrDownload),
			want: "Error while downloading uv",
		},
		{
			name: "version_resolution_failure",
			err:  fmt.Errorf("%w: no stable release found", uv.ErrVersionResolution),
			want: "Error while downloading uv",
		},
		{
			name: "descriptor_missing",
			err:  descriptor.ErrNotFound,
			want: "could not find bex file",
		},
		{
			name: "unclassified_failure",
			err:  fmt.Errorf("mkdir: permission denied"),
			want: "Failed to bootstrap environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderError(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("renderError(%v) = %q, want it to contain %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodeError(t *testing.T) {
	err := &exitCodeError{code: 7}
	if err.Error() != "exit code 7" {
		t.Errorf("Error() = %q", err.Error())
	}
}
