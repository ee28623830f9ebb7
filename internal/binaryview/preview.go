package binaryview

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const DefaultPreviewBytes = 256

// Preview hex-dumps at most limit bytes of data and notes how much was left
// out.
func Preview(data []byte, limit int) string {
	if limit <= 0 {
		limit = DefaultPreviewBytes
	}
	if len(data) == 0 {
		return ""
	}
	shown := data
	if len(shown) > limit {
		shown = shown[:limit]
	}
	var b strings.Builder
	b.WriteString(hex.Dump(shown))
	if rest := len(data) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "… %d more bytes\n", rest)
	}
	return b.String()
}
