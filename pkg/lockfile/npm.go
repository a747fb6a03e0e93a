package lockfile

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/lockroot/lockroot-go/pkg/merkle"
)

// NpmParser parses npm lockfiles (package-lock.json / npm-shrinkwrap.json).
//
// Both the v1 schema (nested "dependencies" objects) and the v2/v3 schema
// (flat "packages" map keyed by node_modules path) are supported. When a
// lockfile carries both sections, "packages" wins: it is the authoritative
// section in v2+ and covers everything "dependencies" does.
type NpmParser struct{}

// npmLockfile is the subset of the package-lock.json schema we consume.
type npmLockfile struct {
	Name            string                     `json:"name"`
	LockfileVersion int                        `json:"lockfileVersion"`
	Packages        map[string]npmPackage      `json:"packages"`
	Dependencies    map[string]npmV1Dependency `json:"dependencies"`
}

type npmPackage struct {
	Version   string `json:"version"`
	Integrity string `json:"integrity"`
	Resolved  string `json:"resolved"`
	Link      bool   `json:"link"`
}

type npmV1Dependency struct {
	Version      string                     `json:"version"`
	Integrity    string                     `json:"integrity"`
	Resolved     string                     `json:"resolved"`
	Dependencies map[string]npmV1Dependency `json:"dependencies"`
}

// Parse extracts dependencies from an npm lockfile.
// Entries are returned sorted by node_modules path (v2+) or name (v1) so the
// output does not depend on Go map iteration order.
func (p *NpmParser) Parse(r io.Reader) ([]*merkle.Dependency, error) {
	var lock npmLockfile
	if err := json.NewDecoder(r).Decode(&lock); err != nil {
		return nil, errors.Wrap(err, "failed to decode package-lock.json")
	}

	if len(lock.Packages) > 0 {
		return p.parsePackages(lock.Packages), nil
	}

	if len(lock.Dependencies) > 0 {
		deps := make([]*merkle.Dependency, 0, len(lock.Dependencies))
		p.collectV1(lock.Dependencies, &deps)
		return deps, nil
	}

	return nil, errors.New("lockfile has neither \"packages\" nor \"dependencies\" section")
}

// PackageManager returns "npm".
func (p *NpmParser) PackageManager() string {
	return "npm"
}

// parsePackages handles the v2/v3 "packages" map.
func (p *NpmParser) parsePackages(packages map[string]npmPackage) []*merkle.Dependency {
	paths := make([]string, 0, len(packages))
	for path := range packages {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	deps := make([]*merkle.Dependency, 0, len(paths))
	for _, path := range paths {
		pkg := packages[path]

		// The "" key is the root project itself; links are workspace symlinks.
		if path == "" || pkg.Link {
			continue
		}

		deps = append(deps, &merkle.Dependency{
			Name:      npmPackageName(path),
			Version:   pkg.Version,
			Integrity: pkg.Integrity,
			Resolved:  pkg.Resolved,
		})
	}

	return deps
}

// collectV1 walks the nested v1 "dependencies" objects depth-first.
func (p *NpmParser) collectV1(depMap map[string]npmV1Dependency, out *[]*merkle.Dependency) {
	names := make([]string, 0, len(depMap))
	for name := range depMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := depMap[name]
		*out = append(*out, &merkle.Dependency{
			Name:      name,
			Version:   entry.Version,
			Integrity: entry.Integrity,
			Resolved:  entry.Resolved,
		})

		if len(entry.Dependencies) > 0 {
			p.collectV1(entry.Dependencies, out)
		}
	}
}

// npmPackageName extracts the package name from a node_modules path key,
// e.g. "node_modules/@scope/pkg/node_modules/dep" -> "dep".
func npmPackageName(path string) string {
	const marker = "node_modules/"
	if idx := strings.LastIndex(path, marker); idx >= 0 {
		return path[idx+len(marker):]
	}
	return path
}
