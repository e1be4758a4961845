package versions

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Generic fallback rules, tried in order when no per-image pattern is
// registered or the registered pattern matches nothing. The matches of
// the first rule that yields anything are used; fallback matches are
// never combined with pattern-specific ones.
var (
	genericNumericPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	genericVPrefixPattern = regexp.MustCompile(`^v\d+\.\d+(\.\d+)?$`)
)

// PatternSet holds the per-image tag conventions. It is built once from
// configuration and never mutated afterwards.
type PatternSet struct {
	patterns map[string]*regexp.Regexp
}

// NewPatternSet compiles a table of image key to regex. It fails on the
// first invalid expression so a bad configuration is caught at startup,
// not mid-scan.
func NewPatternSet(raw map[string]string) (*PatternSet, error) {
	patterns := make(map[string]*regexp.Regexp, len(raw))

	for key, expr := range raw {
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid version pattern for %q: %w", key, err)
		}

		patterns[key] = compiled
	}

	return &PatternSet{patterns: patterns}, nil
}

// DefaultPatterns returns the built-in table of known tag conventions.
func DefaultPatterns() *PatternSet {
	set, err := NewPatternSet(map[string]string{
		"dashy":                          `^release-\d+\.\d+\.\d+$`,
		"filebrowser":                    `^v\d+\.\d+\.\d+$`,
		"goaccess-for-nginxproxymanager": `^\d+\.\d+(\.\d+)?$`,
		"home-assistant":                 `^\d{4}\.\d+\.\d+$`,
		"postgres":                       `^\d+$`,
		"nginx":                          `^\d+\.\d+\.\d+$`,
	})
	if err != nil {
		// The built-in table is compile-time constant; failing to build it
		// is a programming error.
		panic(err)
	}

	return set
}

// Resolve filters candidates for an image key. A registered pattern wins
// when it matches anything; otherwise the generic fallback rules apply in
// order. The two sources are never mixed in one result.
func (s *PatternSet) Resolve(imageKey string, candidates []string) []string {
	clog := logrus.WithField("image_key", imageKey)

	if pattern, ok := s.patterns[imageKey]; ok {
		if matched := filter(pattern, candidates); len(matched) > 0 {
			clog.WithFields(logrus.Fields{
				"pattern": pattern.String(),
				"matched": len(matched),
			}).Debug("Resolved candidates with registered pattern")

			return matched
		}

		clog.WithField("pattern", pattern.String()).
			Debug("Registered pattern matched nothing, falling back")
	}

	for _, pattern := range []*regexp.Regexp{genericNumericPattern, genericVPrefixPattern} {
		if matched := filter(pattern, candidates); len(matched) > 0 {
			clog.WithFields(logrus.Fields{
				"pattern": pattern.String(),
				"matched": len(matched),
			}).Debug("Resolved candidates with generic fallback")

			return matched
		}
	}

	clog.Debug("No candidates matched any version pattern")

	return nil
}

// filter returns the candidates matching the pattern, in their original
// order.
func filter(pattern *regexp.Regexp, candidates []string) []string {
	var matched []string

	for _, candidate := range candidates {
		if pattern.MatchString(candidate) {
			matched = append(matched, candidate)
		}
	}

	return matched
}
