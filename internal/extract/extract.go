// Package extract recovers JSON objects from free-form model output.
//
// Model replies are unreliable: the object may be wrapped in a fenced code
// block, surrounded by prose, or contain escape sequences that are not
// valid JSON. Object handles those cases and reports failure as nil.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fence matches the first fenced block holding a JSON object.
var fence = regexp.MustCompile("(?s)```(?:json)?\\s*({.*?})\\s*```")

// texter is satisfied by provider responses.
type texter interface {
	Text() string
}

// Text returns the text carried by raw: a string, a byte slice, or a value
// with a Text() string method. ok is false for any other type.
func Text(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.RawMessage:
		return string(v), true
	case texter:
		return v.Text(), true
	default:
		return "", false
	}
}

// Payload locates the JSON candidate in text and cleans it. It prefers the
// contents of a fenced block; otherwise the trimmed text must itself look
// like an object.
func Payload(text string) (string, bool) {
	var candidate string
	if m := fence.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	} else {
		candidate = strings.TrimSpace(text)
		if !strings.HasPrefix(candidate, "{") || !strings.HasSuffix(candidate, "}") {
			return "", false
		}
	}
	return Clean(candidate), true
}

// Clean removes literal \n sequences and drops backslashes that do not
// start a valid JSON escape. An escaped backslash is kept as a pair.
func Clean(s string) string {
	s = strings.ReplaceAll(s, `\n`, "")

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break
		}
		switch next := s[i+1]; next {
		case '\\':
			b.WriteString(`\\`)
			i++
		case '"', '/', 'b', 'f', 'n', 'r', 't', 'u':
			b.WriteByte(c)
		default:
			// Invalid escape: keep the character, lose the backslash.
		}
	}
	return b.String()
}

// Object extracts a JSON object from raw. It returns nil when raw carries
// no text, no candidate is found, the candidate does not parse, or it
// parses to something other than an object.
func Object(raw any) map[string]any {
	text, ok := Text(raw)
	if !ok {
		return nil
	}
	payload, ok := Payload(text)
	if !ok {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil
	}
	// "null" decodes into a nil map without error.
	return obj
}

// Into extracts a JSON object from raw and decodes it into v. It reports
// whether an object was found and decoded.
func Into(raw any, v any) bool {
	text, ok := Text(raw)
	if !ok {
		return false
	}
	payload, ok := Payload(text)
	if !ok {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil || fields == nil {
		return false
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false
	}
	return true
}
