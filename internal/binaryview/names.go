package binaryview

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

const fallbackBase = "response"

// preferredExt pins extensions for common types; mime.ExtensionsByType
// depends on the host's mime.types and may list several.
var preferredExt = map[string]string{
	"application/json":         ".json",
	"application/xml":          ".xml",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/gzip":         ".gz",
	"application/octet-stream": ".bin",
	"text/plain":               ".txt",
	"text/html":                ".html",
	"text/css":                 ".css",
	"text/csv":                 ".csv",
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
}

// FilenameHint suggests a local file name for a response body. The
// Content-Disposition filename wins (filename* before filename), then the
// last URL path segment, then "response" with an extension from the media
// type. The result is always a bare base name.
func FilenameHint(disposition, rawURL, contentType string) string {
	name := fromDisposition(disposition)
	if name == "" {
		name = fromURL(rawURL)
	}
	name = sanitize(name)
	if name == "" {
		return fallbackBase + extensionFor(contentType)
	}
	if path.Ext(name) == "" {
		name += extensionFor(contentType)
	}
	return name
}

func fromDisposition(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	// mime decodes filename* (RFC 5987) into "filename" and prefers it.
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func fromURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(path.Clean(p))
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	switch name {
	case ".", "..", "/":
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return strings.TrimLeft(name, ".")
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	if ext, ok := preferredExt[mt]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
