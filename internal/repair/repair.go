// Package repair coerces free-form LLM completions into structured data.
//
// The upstream text generator is not format-guaranteed even when explicitly
// instructed, so parsing runs through successive fallback strategies, first
// success wins:
//
//  1. parse the whole text as JSON
//  2. strip a fenced code-block wrapper and parse
//  3. scan for balanced brace-delimited substrings, largest first, and try each
//  4. heuristically repair common syntax faults and retry 1-3
//  5. if the text looks like structured prose, fall back to a section-keyed map
//
// Parse never fails: on total defeat it returns a sentinel Result carrying
// the raw text with ParseError set, so the caller decides whether to retry
// or degrade.
package repair

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Strategy identifies which fallback produced the result.
type Strategy int

const (
	// StrategyNone means no strategy succeeded.
	StrategyNone Strategy = iota
	// StrategyDirect parsed the raw text as JSON.
	StrategyDirect
	// StrategyFenced parsed after stripping a markdown code fence.
	StrategyFenced
	// StrategyBraceScan parsed a brace-delimited substring.
	StrategyBraceScan
	// StrategySyntaxRepair parsed after heuristic syntax fixes.
	StrategySyntaxRepair
	// StrategySections fell back to a section-keyed map of prose.
	StrategySections
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyFenced:
		return "fenced"
	case StrategyBraceScan:
		return "brace_scan"
	case StrategySyntaxRepair:
		return "syntax_repair"
	case StrategySections:
		return "sections"
	default:
		return "none"
	}
}

// Result is the outcome of a parse. Exactly one of Value or Sections is
// populated on success; on total failure ParseError is true and only Raw
// carries information.
type Result struct {
	Value      any               // decoded JSON value (map or slice)
	Sections   map[string]string // prose fallback, keyed by heading
	Raw        string
	ParseError bool
	Strategy   Strategy
}

// Object returns the decoded value as a keyed object, if it is one.
func (r Result) Object() (map[string]any, bool) {
	obj, ok := r.Value.(map[string]any)
	return obj, ok
}

// HasObject reports whether the result carries a non-empty keyed object.
// This is the structural-validity rule for strict-format calls.
func (r Result) HasObject() bool {
	obj, ok := r.Object()
	return ok && len(obj) > 0
}

// Parse runs the fallback chain on raw text. It never fails.
func Parse(raw string) Result {
	// 1. Direct.
	if v, ok := tryJSON(raw); ok {
		return Result{Value: v, Raw: raw, Strategy: StrategyDirect}
	}

	// 2. Fence-stripped.
	stripped := stripCodeFence(raw)
	if stripped != raw {
		if v, ok := tryJSON(stripped); ok {
			return Result{Value: v, Raw: raw, Strategy: StrategyFenced}
		}
	}

	// 3. Brace scan, largest candidates first.
	for _, candidate := range braceCandidates(stripped) {
		if v, ok := tryJSON(candidate); ok {
			return Result{Value: v, Raw: raw, Strategy: StrategyBraceScan}
		}
	}

	// 4. Heuristic syntax repair, then retry the same ladder.
	repaired := repairSyntax(stripped)
	if repaired != stripped {
		if v, ok := tryJSON(repaired); ok {
			return Result{Value: v, Raw: raw, Strategy: StrategySyntaxRepair}
		}
		for _, candidate := range braceCandidates(repaired) {
			if v, ok := tryJSON(candidate); ok {
				return Result{Value: v, Raw: raw, Strategy: StrategySyntaxRepair}
			}
		}
	}

	// 5. Structured prose.
	if sections := proseSections(raw); len(sections) > 0 {
		return Result{Sections: sections, Raw: raw, Strategy: StrategySections}
	}

	return Result{Raw: raw, ParseError: true, Strategy: StrategyNone}
}

func tryJSON(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	// Only objects and arrays count as structured values; a bare string or
	// number parsing as JSON is not useful structure.
	if s[0] != '{' && s[0] != '[' {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// stripCodeFence removes a markdown code-block wrapper (```json ... ``` or
// ``` ... ```) if the text carries one.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		// Drop a language tag on the fence line.
		if idx := strings.Index(trimmed, "\n"); idx != -1 {
			firstLine := strings.TrimSpace(trimmed[:idx])
			if firstLine == "json" || firstLine == "" {
				trimmed = trimmed[idx+1:]
			}
		}
	}
	if strings.HasSuffix(strings.TrimSpace(trimmed), "```") {
		trimmed = strings.TrimSpace(trimmed)
		trimmed = strings.TrimSuffix(trimmed, "```")
	}

	return strings.TrimSpace(trimmed)
}

// braceCandidates returns balanced {...} and [...] substrings, largest first.
// Brace matching is depth-counting and string-aware but deliberately simple;
// the JSON decoder is the final arbiter.
func braceCandidates(s string) []string {
	var candidates []string
	for _, open := range []byte{'{', '['} {
		close := byte('}')
		if open == '[' {
			close = ']'
		}
		for start := 0; start < len(s); start++ {
			if s[start] != open {
				continue
			}
			depth := 0
			inString := false
			escaped := false
			for i := start; i < len(s); i++ {
				c := s[i]
				if escaped {
					escaped = false
					continue
				}
				switch {
				case c == '\\' && inString:
					escaped = true
				case c == '"':
					inString = !inString
				case !inString && c == open:
					depth++
				case !inString && c == close:
					depth--
					if depth == 0 {
						// Keep scanning inside the span too: an invalid outer
						// object can wrap a valid inner one.
						candidates = append(candidates, s[start:i+1])
						i = len(s)
					}
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	return candidates
}

var (
	unquotedKeyRe  = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	trailingComma  = regexp.MustCompile(`,(\s*[}\]])`)
	singleQuoteVal = regexp.MustCompile(`'([^']*)'`)
)

// repairSyntax applies heuristic fixes for the faults LLMs most often
// produce: single-quoted strings, unquoted object keys, trailing commas.
func repairSyntax(s string) string {
	out := singleQuoteVal.ReplaceAllString(s, `"$1"`)
	out = unquotedKeyRe.ReplaceAllString(out, `$1"$2"$3`)
	out = trailingComma.ReplaceAllString(out, `$1`)
	return out
}

var headingRe = regexp.MustCompile(`^(#{1,6}\s+|[A-Za-z][A-Za-z0-9 /_-]{0,60}:\s*$|\d+\.\s+)`)

// proseSections splits text that looks like structured prose (markdown
// headings, "Key:" lines, numbered lists) into a section-keyed map.
// Returns nil when the text has no recognizable structure.
func proseSections(s string) map[string]string {
	lines := strings.Split(s, "\n")
	sections := make(map[string]string)
	current := ""
	var body []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			body = append(body, line)
			continue
		}
		if headingRe.MatchString(trimmed) {
			flush()
			current = strings.TrimSpace(strings.TrimRight(strings.TrimLeft(trimmed, "# "), ":"))
			current = strings.TrimSpace(strings.TrimLeft(current, "0123456789. "))
			continue
		}
		body = append(body, line)
	}
	flush()

	// A single section with an empty key means nothing looked structured.
	if len(sections) == 0 {
		return nil
	}
	return sections
}
