// Package report turns accepted update records into CI-boundary-safe
// output: a sanitized single-line summary, per-category counts, and the
// KEY=VALUE lines an external pipeline consumes literally.
package report

import "strings"

const (
	// maxSanitizedLength is the character budget before the ellipsis
	// marker is appended.
	maxSanitizedLength = 200
	// ellipsis marks a truncated sanitized string. It is plain ASCII so a
	// second sanitization pass leaves it untouched.
	ellipsis = "..."
)

// removedChars are stripped outright: they can break KEY=VALUE parsing or
// be interpreted by a consuming shell.
const removedChars = "<>\"`$\\"

// Sanitize transforms arbitrary free text into CI-safe single-line text:
// whitespace runs collapse to single spaces, shell-significant characters
// and non-printable or non-ASCII bytes are removed, and the result is
// truncated to the length budget at the last whole word. Sanitizing
// already-sanitized text changes nothing.
func Sanitize(text string) string {
	// Collapse all whitespace, newlines and tabs included, before any
	// character stripping so word boundaries survive.
	text = strings.Join(strings.Fields(text), " ")

	var builder strings.Builder

	builder.Grow(len(text))

	for _, r := range text {
		if r < ' ' || r > '~' {
			continue
		}

		if strings.ContainsRune(removedChars, r) {
			continue
		}

		builder.WriteRune(r)
	}

	return truncate(builder.String())
}

// truncate cuts the text to the length budget at the last whole word and
// appends the ellipsis marker. Text already within budget, including a
// previously truncated string of budget plus marker length, passes
// through unchanged, which keeps Sanitize idempotent.
func truncate(text string) string {
	if len(text) <= maxSanitizedLength+len(ellipsis) {
		return text
	}

	cut := text[:maxSanitizedLength]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}

	return cut + ellipsis
}
