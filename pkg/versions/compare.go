// Package versions implements version-pattern matching and semantic
// ordering of candidate tags. Ordering is strictly numeric: lexical
// comparison is ruled out because it misorders multi-digit components
// ("9" would sort above "10").
package versions

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

// Affixes stripped during normalization. Registries commonly decorate the
// same upstream version with these.
var (
	cleanPrefixes = []string{"release-", "v"}
	cleanSuffixes = []string{"-alpine", "-slim"}
)

// Clean normalizes a version string for comparison: a leading release- or
// v prefix and a trailing -alpine or -slim suffix are stripped. Cleaning
// is idempotent.
func Clean(version string) string {
	for _, prefix := range cleanPrefixes {
		if strings.HasPrefix(version, prefix) {
			version = strings.TrimPrefix(version, prefix)

			break
		}
	}

	for _, suffix := range cleanSuffixes {
		if strings.HasSuffix(version, suffix) {
			version = strings.TrimSuffix(version, suffix)

			break
		}
	}

	return version
}

// parse converts a raw tag into a comparable version. Missing trailing
// numeric components are treated as zero ("21" orders as "21.0.0").
func parse(version string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(Clean(version))
	if err != nil {
		return nil, fmt.Errorf("unparsable version %q: %w", version, err)
	}

	return parsed, nil
}

// Compare orders two version strings numerically. It returns -1, 0 or 1
// when a orders below, equal to, or above b, and an error when either
// side does not parse; unparsable versions are never updates.
func Compare(a, b string) (int, error) {
	va, err := parse(a)
	if err != nil {
		return 0, err
	}

	vb, err := parse(b)
	if err != nil {
		return 0, err
	}

	return va.Compare(vb), nil
}

// Latest returns the maximum candidate by numeric order, not the first
// one the registry happened to return. Unparsable candidates are skipped;
// false is returned when nothing parses.
func Latest(candidates []string) (string, bool) {
	var (
		best    string
		bestVer *semver.Version
	)

	for _, candidate := range candidates {
		parsed, err := parse(candidate)
		if err != nil {
			logrus.WithField("candidate", candidate).
				Debug("Skipping unparsable candidate tag")

			continue
		}

		if bestVer == nil || parsed.GreaterThan(bestVer) {
			best = candidate
			bestVer = parsed
		}
	}

	return best, bestVer != nil
}

// IsNewer reports whether candidate is a strict improvement over current.
// Equal or lesser candidates are rejected, so downgrades and no-op
// rewrites cannot happen. Parse failures on either side report false.
func IsNewer(current, candidate string) bool {
	cmp, err := Compare(current, candidate)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"current":   current,
			"candidate": candidate,
		}).Debug("Version comparison failed, not an update")

		return false
	}

	return cmp < 0
}
