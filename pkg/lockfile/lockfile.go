package lockfile

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/lockroot/lockroot-go/pkg/merkle"
)

// Parser extracts dependency records from a package manager's lockfile.
// Parsers are pure data-ingestion glue in front of the hashing core: they
// produce the ordered Dependency sequence the tree is built over.
type Parser interface {
	// Parse reads a lockfile and returns its dependencies.
	// The returned order is the file's natural order; callers wanting an
	// order-independent commitment should apply SortDependencies.
	Parse(r io.Reader) ([]*merkle.Dependency, error)

	// PackageManager returns the package manager this parser handles ("npm", "pip").
	PackageManager() string
}

// Detect picks a parser based on the lockfile's filename.
// Returns an error for unrecognized filenames.
func Detect(path string) (Parser, error) {
	switch filepath.Base(path) {
	case "package-lock.json", "npm-shrinkwrap.json":
		return &NpmParser{}, nil
	case "requirements.txt":
		return &PipParser{}, nil
	default:
		return nil, errors.Errorf("unrecognized lockfile name: %s (supported: package-lock.json, npm-shrinkwrap.json, requirements.txt)", filepath.Base(path))
	}
}

// ParseFile detects the lockfile format from the filename, opens the file and
// parses it.
func ParseFile(path string) ([]*merkle.Dependency, Parser, error) {
	parser, err := Detect(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open lockfile %s", path)
	}
	defer f.Close()

	deps, err := parser.Parse(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse %s lockfile %s", parser.PackageManager(), path)
	}

	return deps, parser, nil
}

// SortDependencies returns a copy sorted by name, then version, then
// integrity, then resolved. This is the canonical ordering policy applied
// before hashing so the commitment does not depend on lockfile iteration
// order. The original slice is not modified.
func SortDependencies(deps []*merkle.Dependency) []*merkle.Dependency {
	sorted := make([]*merkle.Dependency, len(deps))
	copy(sorted, deps)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		if sorted[i].Version != sorted[j].Version {
			return sorted[i].Version < sorted[j].Version
		}
		if sorted[i].Integrity != sorted[j].Integrity {
			return sorted[i].Integrity < sorted[j].Integrity
		}
		return sorted[i].Resolved < sorted[j].Resolved
	})

	return sorted
}
