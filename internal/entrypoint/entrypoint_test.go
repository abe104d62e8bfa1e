package entrypoint

import (
	"errors"
	"slices"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{
			name: "bare_module",
			spec: "myapp",
			want: []string{"-m", "myapp"},
		},
		{
			name: "dotted_module",
			spec: "myapp.cli",
			want: []string{"-m", "myapp.cli"},
		},
		{
			name: "module_with_attr",
			spec: "myapp.cli:main",
			want: []string{"-c", "import myapp.cli as _entrypoint;_entrypoint.main()"},
		},
		{
			name: "nested_attr",
			spec: "myapp:app.run",
			want: []string{"-c", "import myapp as _entrypoint;_entrypoint.app.run()"},
		},
		{
			name: "whitespace_around_colon",
			spec: "myapp.cli : main",
			want: []string{"-c", "import myapp.cli as _entrypoint;_entrypoint.main()"},
		},
		{
			name: "extras_suffix_ignored",
			spec: "myapp.cli:main[extra]",
			want: []string{"-c", "import myapp.cli as _entrypoint;_entrypoint.main()"},
		},
		{
			name: "extras_without_attr",
			spec: "myapp.cli[extra]",
			want: []string{"-m", "myapp.cli"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.spec)
			if err != nil {
				t.Fatalf("translate %q: %v", tt.spec, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("translate %q = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestTranslateInvalid(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{name: "empty", spec: ""},
		{name: "leading_colon", spec: ":main"},
		{name: "shell_injection", spec: "myapp; rm -rf /"},
		{name: "spaces_in_module", spec: "my app:main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Translate(tt.spec); !errors.Is(err, ErrInvalid) {
				t.Errorf("translate %q: error = %v, want ErrInvalid", tt.spec, err)
			}
		})
	}
}
