package hdo

import (
	"encoding/json"
	"log"
	"regexp"
	"strings"

	"github.com/hdotools/hdomanager/internal/metrics"
)

var (
	reBareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// extractArray locates the JavaScript declaration `var <name> = [...]` in
// the page, captures the balanced array literal, repairs it into strict
// JSON and decodes it. The page format is not contractually stable, so
// every failure mode degrades to an empty slice instead of an error: the
// system prefers "no data" over crashing on upstream format drift.
func extractArray(html, varName string) []RawRateEntry {
	decl := regexp.MustCompile(`var\s+` + regexp.QuoteMeta(varName) + `\s*=\s*\[`)

	loc := decl.FindStringIndex(html)
	if loc == nil {
		log.Printf("hdo: variable %q not found in page", varName)
		metrics.ExtractionFailuresTotal.WithLabelValues(varName, "not_found").Inc()
		return nil
	}

	start := loc[1] - 1 // position of the opening '['
	end, ok := scanArrayEnd(html, start)
	if !ok {
		log.Printf("hdo: unmatched brackets in %q", varName)
		metrics.ExtractionFailuresTotal.WithLabelValues(varName, "unbalanced").Inc()
		return nil
	}

	repaired := repairJSON(html[start:end])

	var entries []RawRateEntry
	if err := json.Unmarshal([]byte(repaired), &entries); err != nil {
		log.Printf("hdo: parse %q failed after repair: %v", varName, err)
		metrics.ExtractionFailuresTotal.WithLabelValues(varName, "parse").Inc()
		return nil
	}

	log.Printf("hdo: parsed %d entries from %q", len(entries), varName)
	return entries
}

// scanArrayEnd scans from the opening bracket at start and returns the
// offset just past the matching closing bracket. The scanner tracks quoted
// strings (single or double, matched to their own opener) and escape
// sequences, so brackets inside string values never affect nesting depth.
// It reports false when the input ends with unbalanced brackets.
func scanArrayEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	var stringChar byte
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}

		if c == '"' || c == '\'' {
			if !inString {
				inString = true
				stringChar = c
			} else if c == stringChar {
				inString = false
			}
			continue
		}

		if inString {
			continue
		}

		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}

	return 0, false
}

// repairJSON turns the captured JavaScript array literal into strict JSON.
// It is a narrowly scoped best-effort transform: single quotes become
// double quotes, bare object keys get quoted (keys already quoted are left
// alone because they are not preceded by '{' or ','), and trailing commas
// before a closing brace or bracket are dropped. A post-repair parse
// failure is an expected outcome, handled by the caller.
func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	s = reBareKey.ReplaceAllString(s, `$1"$2"$3`)
	s = reTrailingComma.ReplaceAllString(s, `$1`)
	return s
}
