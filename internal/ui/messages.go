package ui

import (
	"github.com/forgehttp/forge/internal/history"
	"github.com/forgehttp/forge/internal/send"
	"github.com/forgehttp/forge/internal/vars"
	"github.com/forgehttp/forge/internal/watcher"
)

type statusLevel int

const (
	statusInfo statusLevel = iota
	statusWarn
	statusError
	statusSuccess
)

type statusMsg struct {
	text  string
	level statusLevel
}

type responseMsg struct {
	result send.Result
}

type envFileMsg struct {
	event watcher.Event
}

type envReloadedMsg struct {
	set vars.EnvironmentSet
	err error
}

type historyLoadedMsg struct {
	entries []history.Entry
	err     error
}
