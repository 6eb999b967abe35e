package gallery

import "strings"

// FindBalancedJSON locates marker in text and returns the JSON object that
// starts at the first '{' after it, up to and including its matching '}'.
// Braces inside JSON string literals are ignored. It reports false when the
// marker is absent or the object never closes.
func FindBalancedJSON(text, marker string) (string, bool) {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(marker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		ch := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[start : i+1], true
			}
		}
	}
	return "", false
}
