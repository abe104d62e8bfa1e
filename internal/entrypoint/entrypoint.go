// Package entrypoint translates descriptor entrypoint strings into
// python interpreter arguments.
//
// An entrypoint names a module, optionally followed by a colon and an
// attribute path, optionally followed by an extras suffix:
//
//	myapp.cli
//	myapp.cli:main
//	myapp.cli:main[extra]
//
// A bare module runs as "python -m <module>". A module:attr form runs
// as "python -c" with a small shim that imports the module and calls
// the attribute.
package entrypoint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is returned when an entrypoint string does not follow the
// module[:attr][extras] format.
var ErrInvalid = errors.New("invalid entrypoint format")

var pattern = regexp.MustCompile(
	`^(?P<module>[\w.]+)\s*` +
		`(:\s*(?P<attr>[\w.]+)\s*)?` +
		`((?P<extras>\[.*\])\s*)?$`,
)

// Translate converts an entrypoint string into the argument list to
// pass to a python interpreter.
func Translate(spec string) ([]string, error) {
	match := pattern.FindStringSubmatch(spec)
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, spec)
	}

	module := match[pattern.SubexpIndex("module")]
	attr := match[pattern.SubexpIndex("attr")]

	var attrs []string
	for _, part := range strings.Split(attr, ".") {
		if part != "" {
			attrs = append(attrs, part)
		}
	}
	if len(attrs) == 0 {
		return []string{"-m", module}, nil
	}
	shim := fmt.Sprintf("import %s as _entrypoint;_entrypoint.%s()", module, strings.Join(attrs, "."))
	return []string{"-c", shim}, nil
}
