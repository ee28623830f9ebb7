package httpclient

import (
	"net/http"
	"strings"
)

// ParseSetCookie reads name=value before the first ';' and then only the
// Domain and Path attributes. Every header yields a cookie; a missing '='
// leaves the value empty.
func ParseSetCookie(header string) Cookie {
	parts := strings.Split(header, ";")
	name, value, _ := strings.Cut(parts[0], "=")

	cookie := Cookie{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value), Path: "/"}
	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		switch {
		case strings.HasPrefix(attr, "Domain="):
			cookie.Domain = strings.TrimPrefix(attr, "Domain=")
		case strings.HasPrefix(attr, "Path="):
			cookie.Path = strings.TrimPrefix(attr, "Path=")
		}
	}
	return cookie
}

func parseCookies(h http.Header) []Cookie {
	values := h.Values("Set-Cookie")
	if len(values) == 0 {
		return nil
	}
	cookies := make([]Cookie, 0, len(values))
	for _, raw := range values {
		cookies = append(cookies, ParseSetCookie(raw))
	}
	return cookies
}
