package config

import (
	"strings"
	"time"

	"github.com/forgehttp/forge/internal/httpclient"
)

type HTTPSettings struct {
	TimeoutSeconds  float64 `json:"timeout_seconds"  toml:"timeout_seconds"`
	FollowRedirects bool    `json:"follow_redirects" toml:"follow_redirects"`
	Insecure        bool    `json:"insecure"         toml:"insecure"`
	Proxy           string  `json:"proxy"            toml:"proxy"`
}

type HistorySettings struct {
	MaxEntries int `json:"max_entries" toml:"max_entries"`
}

const (
	HTTPTimeoutDefault = 30.0
	HTTPTimeoutMin     = 0.1
	HTTPTimeoutMax     = 3600.0

	HistoryMaxEntriesDefault = 200
	HistoryMaxEntriesMin     = 1
	HistoryMaxEntriesMax     = 100000
)

func DefaultHTTPSettings() HTTPSettings {
	return HTTPSettings{
		TimeoutSeconds:  HTTPTimeoutDefault,
		FollowRedirects: true,
	}
}

func NormaliseHTTPSettings(in HTTPSettings) HTTPSettings {
	out := in
	out.TimeoutSeconds = clamp(in.TimeoutSeconds, HTTPTimeoutMin, HTTPTimeoutMax, HTTPTimeoutDefault)
	out.Proxy = strings.TrimSpace(in.Proxy)
	return out
}

func (s HTTPSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds * float64(time.Second))
}

// ClientOptions maps the settings onto executor options.
func (s HTTPSettings) ClientOptions() httpclient.Options {
	opts := httpclient.DefaultOptions()
	opts.Timeout = s.Timeout()
	opts.FollowRedirects = s.FollowRedirects
	opts.InsecureSkipVerify = s.Insecure
	opts.ProxyURL = s.Proxy
	return opts
}

func DefaultHistorySettings() HistorySettings {
	return HistorySettings{MaxEntries: HistoryMaxEntriesDefault}
}

func NormaliseHistorySettings(in HistorySettings) HistorySettings {
	return HistorySettings{
		MaxEntries: clamp(
			in.MaxEntries,
			HistoryMaxEntriesMin,
			HistoryMaxEntriesMax,
			HistoryMaxEntriesDefault,
		),
	}
}

func clamp[T ~float64 | ~int](value, min, max, fallback T) T {
	if value == 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
