package lockfile

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/lockroot/lockroot-go/pkg/merkle"
)

// PipParser parses pip requirements.txt files.
//
// Only exactly pinned requirements (name==version) are accepted: a
// reproducibility commitment over version ranges would be meaningless.
// `--hash=algo:hex` options become the dependency's integrity field in
// "algo:hex" form; environment markers (after ";") and inline comments are
// stripped; backslash line continuations are joined before parsing.
type PipParser struct{}

// Parse extracts dependencies from a requirements.txt file in file order.
func (p *PipParser) Parse(r io.Reader) ([]*merkle.Dependency, error) {
	deps := make([]*merkle.Dependency, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending strings.Builder
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		// Join backslash continuations into a single logical line.
		if trimmed := strings.TrimRight(line, " \t"); strings.HasSuffix(trimmed, "\\") {
			pending.WriteString(strings.TrimSuffix(trimmed, "\\"))
			pending.WriteString(" ")
			continue
		}
		if pending.Len() > 0 {
			line = pending.String() + line
			pending.Reset()
		}

		dep, err := parseRequirementLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "requirements.txt line %d", lineNo)
		}
		if dep != nil {
			deps = append(deps, dep)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read requirements.txt")
	}

	// A continuation on the final line leaves its requirement unflushed.
	if pending.Len() > 0 {
		dep, err := parseRequirementLine(pending.String())
		if err != nil {
			return nil, errors.Wrapf(err, "requirements.txt line %d", lineNo)
		}
		if dep != nil {
			deps = append(deps, dep)
		}
	}

	return deps, nil
}

// PackageManager returns "pip".
func (p *PipParser) PackageManager() string {
	return "pip"
}

// parseRequirementLine parses one logical requirements.txt line.
// Returns (nil, nil) for blank lines, comments and pip options.
func parseRequirementLine(line string) (*merkle.Dependency, error) {
	// Strip inline comments: " #" starts a comment per pip's rules.
	if idx := strings.Index(line, " #"); idx >= 0 {
		line = line[:idx]
	}

	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	// Whole-line options like "-r other.txt" or "--index-url ..." carry no
	// dependency of their own.
	if strings.HasPrefix(line, "-") {
		return nil, nil
	}

	// Split off per-requirement options (--hash=...).
	fields := strings.Fields(line)
	spec := fields[0]

	var integrity string
	for _, field := range fields[1:] {
		if value, ok := strings.CutPrefix(field, "--hash="); ok {
			// pip writes "sha256:hex"; keep the first hash when several are listed.
			if integrity == "" {
				integrity = value
			}
		}
	}

	// Strip environment markers ("; python_version < '3.9'").
	if idx := strings.Index(spec, ";"); idx >= 0 {
		spec = strings.TrimSpace(spec[:idx])
	}

	name, version, found := strings.Cut(spec, "==")
	if !found {
		return nil, errors.Errorf("requirement %q is not exactly pinned (expected name==version)", spec)
	}

	// Drop extras: "requests[security]==2.31.0".
	if idx := strings.Index(name, "["); idx >= 0 {
		name = name[:idx]
	}

	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" {
		return nil, errors.Errorf("malformed requirement %q", spec)
	}

	return &merkle.Dependency{
		Name:      name,
		Version:   version,
		Integrity: integrity,
	}, nil
}
