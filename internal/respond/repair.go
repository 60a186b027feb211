package respond

import (
	"regexp"
	"strings"
)

// Repair normalizes raw model output into something the JSON decoder has a
// fighting chance with. It is an explicit best-effort pass over the known
// failure modes of model-produced JSON, not a general grammar: each stage is
// pinned by tests in repair_test.go. Stages run in a fixed order and the whole
// pipeline is idempotent on already-clean input.
func Repair(raw string) string {
	s := extractFencedBlock(raw)
	s = firstBalancedObject(s)
	s = balanceDelimiters(s)
	s = stripTrailingCommas(s)
	s = rewriteSingleQuotes(s)
	s = escapeControlChars(s)
	return strings.TrimSpace(s)
}

var fencedBlockRe = regexp.MustCompile("```[a-zA-Z0-9_-]*[ \t]*\\n([\\s\\S]*?)```")

// extractFencedBlock keeps only the interior of the first fenced code block.
// Trailing prose after the closing fence is discarded. An opening fence with
// no closing fence keeps everything after the fence line.
func extractFencedBlock(s string) string {
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			return rest[nl+1:]
		}
		return ""
	}
	return s
}

// firstBalancedObject cuts the input down to the first balanced top-level JSON
// object when several are concatenated. Input that never closes its first
// object is passed through untouched for the balancing stage to finish.
func firstBalancedObject(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") {
		// Top-level array, not an object concatenation.
		return s
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// balanceDelimiters appends missing closing braces/brackets and drops
// unmatched extra closers, scanning nesting depth outside of strings.
func balanceDelimiters(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 4)
	var stack []byte
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
			out.WriteByte(c)
		case '{':
			stack = append(stack, '}')
			out.WriteByte(c)
		case '[':
			stack = append(stack, ']')
			out.WriteByte(c)
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
				out.WriteByte(c)
			}
			// Unmatched closer: discard.
		default:
			out.WriteByte(c)
		}
	}
	if inStr {
		out.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out.WriteByte(stack[i])
	}
	return out.String()
}

// stripTrailingCommas drops commas that directly precede a closing brace or
// bracket, skipping string contents like the neighboring stages.
func stripTrailingCommas(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		if c == '"' {
			inStr = true
			out.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.String()
}

// rewriteSingleQuotes converts bare single quotes occurring inside string
// values into escaped double quotes. Models frequently emit nested quoting
// with single quotes; downstream consumers expect proper JSON escaping.
func rewriteSingleQuotes(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
				out.WriteByte(c)
			case c == '\\':
				escaped = true
				out.WriteByte(c)
			case c == '"':
				inStr = false
				out.WriteByte(c)
			case c == '\'':
				out.WriteString(`\"`)
			default:
				out.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inStr = true
		}
		out.WriteByte(c)
	}
	return out.String()
}

// escapeControlChars escapes literal newlines, carriage returns and tabs that
// appear inside string values.
func escapeControlChars(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
				out.WriteByte(c)
			case c == '\\':
				escaped = true
				out.WriteByte(c)
			case c == '"':
				inStr = false
				out.WriteByte(c)
			case c == '\n':
				out.WriteString(`\n`)
			case c == '\r':
				out.WriteString(`\r`)
			case c == '\t':
				out.WriteString(`\t`)
			default:
				out.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inStr = true
		}
		out.WriteByte(c)
	}
	return out.String()
}
