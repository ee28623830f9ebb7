package vars

import "strings"

// Span locates one {{name}} placeholder. Start and End are byte offsets into
// the scanned string and cover both delimiters; End is exclusive.
type Span struct {
	Start int
	End   int
	Name  string
}

// ParseVars scans input once, left to right. An unclosed "{{" stops the scan:
// anything after it is never considered. There is no escape for a literal "{{".
func ParseVars(input string) []Span {
	var spans []Span
	i := 0
	for i+1 < len(input) {
		if input[i] != '{' || input[i+1] != '{' {
			i++
			continue
		}
		closeAt := strings.Index(input[i+2:], "}}")
		if closeAt < 0 {
			break
		}
		end := i + 2 + closeAt + 2
		if name := strings.TrimSpace(input[i+2 : i+2+closeAt]); name != "" {
			spans = append(spans, Span{Start: i, End: end, Name: name})
		}
		i = end
	}
	return spans
}
