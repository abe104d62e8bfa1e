// Package descriptor discovers and parses the declarative environment
// descriptor file.
//
// A descriptor is any file whose name matches "bex.*" and which embeds
// an inline metadata block of the form:
//
//	# /// bex
//	# requires-python: "3.12"
//	# requirements: |
//	#   requests==2.31.0
//	# entrypoint: myapp.cli:main
//	# ///
//
// The block's payload is YAML, carried on comment lines so the
// descriptor can double as a script in its own language.
package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when no descriptor file exists in the
	// target directory.
	ErrNotFound = errors.New("could not find bex file")
	// ErrInvalid is returned when the descriptor's metadata block is
	// missing required fields or malformed.
	ErrInvalid = errors.New("invalid configuration")
)

// blockPattern matches one inline metadata block: an opening
// "# /// <label>" line, one or more comment lines, and a closing
// "# ///" line.
var blockPattern = regexp.MustCompile(`(?m)^# /// ([a-zA-Z0-9-]+)$\n((?:#(?:| .*)\n)+)# ///$`)

// blockLabels are the metadata block labels this engine consumes.
var blockLabels = map[string]bool{
	"bex":       true,
	"bootstrap": true,
}

// Descriptor is the validated, immutable input of one bootstrap run.
type Descriptor struct {
	Directory      string // project root directory
	FilePath       string // absolute path of the descriptor file
	UVVersion      string // pinned toolchain version, empty for latest
	RequiresPython string // python version specifier for the environment
	Requirements   string // raw dependency spec, may be empty
	Entrypoint     string // "module[:attr]", passed through untouched
}

// metadata is the YAML payload of the inline block.
type metadata struct {
	UV             string `yaml:"uv"`
	RequiresPython string `yaml:"requires-python"`
	Requirements   string `yaml:"requirements"`
	Entrypoint     string `yaml:"entrypoint"`
}

// Discover locates the descriptor file in directory by the "bex.*"
// naming convention. When several match, the lexicographically first
// wins to keep discovery deterministic.
func Discover(directory string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(directory, "bex.*"))
	if err != nil {
		return "", fmt.Errorf("scan directory: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Load reads and validates the descriptor. filePath may be empty, in
// which case the file is discovered inside directory; directory may be
// empty, in which case the current working directory is used.
func Load(directory, filePath string) (*Descriptor, error) {
	if directory == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		directory = cwd
	}

	if filePath == "" {
		found, err := Discover(directory)
		if err != nil {
			return nil, err
		}
		filePath = found
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve descriptor path: %w", err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	meta, err := parseInlineMetadata(string(content))
	if err != nil {
		return nil, err
	}

	if err := validate(meta); err != nil {
		return nil, err
	}

	return &Descriptor{
		Directory:      directory,
		FilePath:       absPath,
		UVVersion:      meta.UV,
		RequiresPython: meta.RequiresPython,
		Requirements:   meta.Requirements,
		Entrypoint:     meta.Entrypoint,
	}, nil
}

// parseInlineMetadata extracts the single recognized metadata block and
// decodes its YAML payload. More than one recognized block is an error;
// zero blocks yields an empty metadata value that fails validation
// later.
func parseInlineMetadata(content string) (*metadata, error) {
	// Normalize line endings so the block pattern works on files
	// written on Windows.
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	var payloads []string
	for _, match := range blockPattern.FindAllStringSubmatch(content, -1) {
		if blockLabels[match[1]] {
			payloads = append(payloads, match[2])
		}
	}

	if len(payloads) > 1 {
		return nil, fmt.Errorf("%w: multiple metadata blocks found", ErrInvalid)
	}

	meta := &metadata{}
	if len(payloads) == 0 {
		return meta, nil
	}

	var payload strings.Builder
	for _, line := range strings.SplitAfter(payloads[0], "\n") {
		switch {
		case strings.HasPrefix(line, "# "):
			payload.WriteString(line[2:])
		case strings.HasPrefix(line, "#"):
			payload.WriteString(line[1:])
		}
	}

	if err := yaml.Unmarshal([]byte(payload.String()), meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return meta, nil
}

// validate checks the required metadata fields.
func validate(meta *metadata) error {
	var missing []string
	if meta.RequiresPython == "" {
		missing = append(missing, "requires-python")
	}
	if meta.Entrypoint == "" {
		missing = append(missing, "entrypoint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w, missing: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}
