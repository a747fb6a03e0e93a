package lockfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const npmV3Lockfile = `{
  "name": "example-app",
  "version": "1.0.0",
  "lockfileVersion": 3,
  "requires": true,
  "packages": {
    "": {
      "name": "example-app",
      "version": "1.0.0",
      "dependencies": {
        "left-pad": "^1.3.0"
      }
    },
    "node_modules/left-pad": {
      "version": "1.3.0",
      "resolved": "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz",
      "integrity": "sha512-XI5MPzVNApjAyhQzphX8BkmKsKUxD4LdyK24iZeQGinBN9yTQT3bFlCBy/aVx2HrNcqQGsdot8yNFjcz4XU50A=="
    },
    "node_modules/@scope/util": {
      "version": "2.1.0",
      "resolved": "https://registry.npmjs.org/@scope/util/-/util-2.1.0.tgz",
      "integrity": "sha512-scopedintegrity=="
    },
    "node_modules/@scope/util/node_modules/inner-dep": {
      "version": "0.9.1",
      "resolved": "https://registry.npmjs.org/inner-dep/-/inner-dep-0.9.1.tgz",
      "integrity": "sha512-nestedintegrity=="
    },
    "node_modules/linked-workspace": {
      "link": true,
      "resolved": "packages/linked-workspace"
    }
  }
}`

const npmV1Lockfile = `{
  "name": "legacy-app",
  "version": "1.0.0",
  "lockfileVersion": 1,
  "requires": true,
  "dependencies": {
    "left-pad": {
      "version": "1.3.0",
      "resolved": "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz",
      "integrity": "sha512-XI5MPzVNApjAyhQzphX8BkmKsKUxD4LdyK24iZeQGinBN9yTQT3bFlCBy/aVx2HrNcqQGsdot8yNFjcz4XU50A=="
    },
    "request": {
      "version": "2.88.2",
      "resolved": "https://registry.npmjs.org/request/-/request-2.88.2.tgz",
      "integrity": "sha512-requestintegrity==",
      "dependencies": {
        "tough-cookie": {
          "version": "2.5.0",
          "resolved": "https://registry.npmjs.org/tough-cookie/-/tough-cookie-2.5.0.tgz",
          "integrity": "sha512-toughcookieintegrity=="
        }
      }
    }
  }
}`

func TestNpmParserV3(t *testing.T) {
	parser := &NpmParser{}
	deps, err := parser.Parse(strings.NewReader(npmV3Lockfile))
	require.NoError(t, err)

	// Root entry and workspace link are skipped.
	require.Len(t, deps, 3)

	byName := map[string]int{}
	for i, dep := range deps {
		byName[dep.Name] = i
	}
	require.Contains(t, byName, "left-pad")
	require.Contains(t, byName, "@scope/util")
	require.Contains(t, byName, "inner-dep")

	leftPad := deps[byName["left-pad"]]
	require.Equal(t, "1.3.0", leftPad.Version)
	require.Equal(t, "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz", leftPad.Resolved)
	require.True(t, strings.HasPrefix(leftPad.Integrity, "sha512-"))

	// Nested node_modules paths resolve to the innermost package name.
	inner := deps[byName["inner-dep"]]
	require.Equal(t, "0.9.1", inner.Version)
}

func TestNpmParserV1(t *testing.T) {
	parser := &NpmParser{}
	deps, err := parser.Parse(strings.NewReader(npmV1Lockfile))
	require.NoError(t, err)

	require.Len(t, deps, 3)

	names := make([]string, len(deps))
	for i, dep := range deps {
		names[i] = dep.Name
	}
	require.Contains(t, names, "left-pad")
	require.Contains(t, names, "request")
	require.Contains(t, names, "tough-cookie")
}

func TestNpmParserDeterministicOrder(t *testing.T) {
	parser := &NpmParser{}

	deps1, err := parser.Parse(strings.NewReader(npmV3Lockfile))
	require.NoError(t, err)
	deps2, err := parser.Parse(strings.NewReader(npmV3Lockfile))
	require.NoError(t, err)

	require.Equal(t, len(deps1), len(deps2))
	for i := range deps1 {
		require.Equal(t, *deps1[i], *deps2[i])
	}
}

func TestNpmParserInvalidInput(t *testing.T) {
	parser := &NpmParser{}

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := parser.Parse(strings.NewReader("{not json"))
		require.Error(t, err)
	})

	t.Run("no dependency sections", func(t *testing.T) {
		_, err := parser.Parse(strings.NewReader(`{"name": "empty", "lockfileVersion": 3}`))
		require.Error(t, err)
	})
}

func TestNpmParserPackageManager(t *testing.T) {
	require.Equal(t, "npm", (&NpmParser{}).PackageManager())
}
