package instruction

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z]*)[ \\t]*\\r?\\n?(.*?)```")

const actionKey = `"action"`

// Extract returns the first JSON candidate found in text. A fenced ```json block
// wins over bare braces. Candidates without an "action" key are ignored, and a
// fenced candidate that does not parse yields false.
func Extract(text string) (any, bool) {
	if raw, found := fencedCandidate(text); found {
		if v, ok := decode(raw); ok {
			return v, true
		}
		return firstObjectWith(raw, actionKey)
	}
	return firstObjectWith(text, actionKey)
}

func fencedCandidate(text string) (string, bool) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		lang := strings.ToLower(m[1])
		body := strings.TrimSpace(m[2])
		if lang != "json" && !(lang == "" && strings.HasPrefix(body, "{")) {
			continue
		}
		if !strings.Contains(body, actionKey) {
			continue
		}
		return body, true
	}
	return "", false
}

func decode(raw string) (v any, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

// firstObjectWith decodes the first balanced {...} span of s, in order of its
// opening brace, that contains key. Braces inside string literals do not count
// toward nesting, so nested objects in field values survive.
func firstObjectWith(s, key string) (any, bool) {
	keys := indexAll(s, key)
	for _, sp := range braceSpans(s) {
		// key must start inside the span and end before its closing brace
		k := sort.SearchInts(keys, sp.start)
		if k == len(keys) || keys[k]+len(key) > sp.end {
			continue
		}
		if v, ok := decode(s[sp.start : sp.end+1]); ok {
			return v, true
		}
	}
	return nil, false
}

type braceSpan struct {
	start, end int
}

// braceSpans pairs opening braces with their closing braces, sorted by start.
// A scan from an opening brace sees the same string state as any scan that
// reached that brace outside a string, so one stack pass per starting brace
// resolves every brace it meets. A new pass is only needed from a brace the
// earlier passes saw inside a string literal.
func braceSpans(s string) []braceSpan {
	seen := make([]bool, len(s))
	var spans []braceSpan
	for from := 0; ; {
		start := -1
		for i := from; i < len(s); i++ {
			if s[i] == '{' && !seen[i] {
				start = i
				break
			}
		}
		if start < 0 {
			break
		}
		spans = scanSpans(s, start, seen, spans)
		from = start + 1
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

func scanSpans(s string, from int, seen []bool, spans []braceSpan) []braceSpan {
	type open struct {
		pos   int
		fresh bool
	}
	var (
		stack    []open
		inString bool
		escaped  bool
	)
	for i := from; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, open{pos: i, fresh: !seen[i]})
			seen[i] = true
		case '}':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.fresh {
				spans = append(spans, braceSpan{start: top.pos, end: i})
			}
		}
	}
	return spans
}

func indexAll(s, sub string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + 1
	}
}
