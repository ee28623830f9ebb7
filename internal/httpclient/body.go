package httpclient

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

var textualTypes = []string{
	"text/",
	"application/xml",
	"application/xhtml",
	"application/javascript",
}

// ClassifyBody never fails: every path degrades to lossy text or raw bytes.
// A declared textual type wins over emptiness, so an empty JSON or HTML
// payload is Text("") and only untyped empty payloads are BodyEmpty.
func ClassifyBody(contentType string, raw []byte) Body {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/json") {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, bytes.TrimSpace(raw), "", "  "); err == nil {
			return Body{Kind: BodyText, Text: pretty.String()}
		}
		return Body{Kind: BodyText, Text: lossyText(raw)}
	}
	for _, prefix := range textualTypes {
		if strings.Contains(ct, prefix) {
			return Body{Kind: BodyText, Text: lossyText(raw)}
		}
	}
	if len(raw) == 0 {
		return Body{Kind: BodyEmpty}
	}
	if utf8.Valid(raw) {
		return Body{Kind: BodyText, Text: string(raw)}
	}
	return Body{Kind: BodyBinary, Bytes: raw}
}

func lossyText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}
