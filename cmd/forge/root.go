package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/forgehttp/forge/internal/bindings"
	"github.com/forgehttp/forge/internal/config"
	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/highlight"
	"github.com/forgehttp/forge/internal/history"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/send"
	"github.com/forgehttp/forge/internal/telemetry"
	"github.com/forgehttp/forge/internal/ui"
	"github.com/forgehttp/forge/internal/vars"
	"github.com/forgehttp/forge/internal/watcher"
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	verbose bool
	env     envOptions
	request requestOptions
	client  clientOptions
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// workspace is everything loaded from the config directory.
type workspace struct {
	settings    config.Settings
	envHandle   config.Handle
	envs        vars.EnvironmentSet
	environment *vars.Environment
}

func (a *app) loadWorkspace() (*workspace, error) {
	settings, _, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	file := a.env.file
	if file == "" {
		file = settings.EnvironmentsFile
	}
	handle := config.EnvironmentsPath(file)
	envs, err := config.LoadEnvironments(handle)
	if err != nil {
		return nil, err
	}
	env, err := pickEnvironment(envs, a.env.name, settings.DefaultEnvironment)
	if err != nil {
		return nil, err
	}
	return &workspace{settings: settings, envHandle: handle, envs: envs, environment: env}, nil
}

// pickEnvironment honours an explicit name strictly. Without one it tries the
// configured default, then the conventional names, then the first entry.
func pickEnvironment(envs vars.EnvironmentSet, explicit, preferred string) (*vars.Environment, error) {
	if name := strings.TrimSpace(explicit); name != "" {
		if env := envs.Find(name); env != nil {
			return env, nil
		}
		if len(envs) == 0 {
			return nil, errdef.New(errdef.CodeConfig, "environment %q not found: no environments loaded", name)
		}
		return nil, errdef.New(errdef.CodeConfig, "environment %q not found (available: %s)", name, strings.Join(envs.Names(), ", "))
	}
	if len(envs) == 0 {
		return nil, nil
	}
	for _, name := range []string{preferred, "dev", "default", "local"} {
		if env := envs.Find(name); env != nil {
			return env, nil
		}
	}
	return &envs[0], nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "forge [url]",
		Short: "Terminal HTTP client with environment placeholders",
		Long: heredoc.Doc(`
			forge is a terminal workbench for HTTP requests. URLs, headers, auth
			and bodies may contain {{name}} placeholders that are resolved from
			the active environment and then the process environment. Secret
			variables are masked everywhere except on the wire.

			Without a subcommand forge opens the interactive view.
		`),
		Example: heredoc.Doc(`
			forge https://api.example.com/users
			forge --env staging '{{base_url}}/health'
			forge send -H 'Authorization: Bearer {{token}}' '{{base_url}}/me'
			forge resolve '{{base_url}}/users/{{id}}'
		`),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = newLogger(a.stderr, a.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInteractive(cmd, args)
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	a.env.bind(root.PersistentFlags())
	a.request.bind(root.Flags())
	a.client.bind(root.Flags())

	root.AddCommand(
		newSendCmd(a),
		newResolveCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) runInteractive(cmd *cobra.Command, args []string) error {
	logFile, err := openLogFile(config.LogPath())
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "open log file")
	}
	defer logFile.Close()
	logger := newLogger(logFile, a.verbose)

	ws, err := a.loadWorkspace()
	if err != nil {
		return err
	}
	req, err := a.request.build(args)
	if err != nil {
		return err
	}

	keys, keySrc, err := bindings.Load(config.Dir())
	if err != nil {
		return err
	}
	logger.Debug("key bindings loaded", "path", keySrc.Path)

	client := httpclient.NewClient(a.client.httpSettings(cmd.Flags(), ws.settings.HTTP).ClientOptions())
	defer a.startTelemetry(cmd, client, logger)()

	opts := []send.Option{send.WithLogger(logger)}
	store, err := history.Open(config.HistoryPath(), ws.settings.History.MaxEntries)
	if err != nil {
		logger.Warn("history disabled", "error", err)
	} else {
		defer store.Close()
		opts = append(opts, send.WithRecorder(store))
	}
	dispatcher := send.NewDispatcher(client, opts...)
	defer dispatcher.Close()

	w, err := watcher.New(watcher.Options{Logger: logger})
	if err != nil {
		logger.Warn("environment file watching disabled", "error", err)
	} else {
		if err := w.Track(ws.envHandle.Path, nil); err != nil {
			logger.Warn("track environments file", "path", ws.envHandle.Path, "error", err)
		}
		w.Start()
		defer w.Stop()
	}

	hlOpts := highlight.DefaultOptions()
	if ws.settings.Theme != "" {
		hlOpts.Style = ws.settings.Theme
	}

	active := ""
	if ws.environment != nil {
		active = ws.environment.Name
	}
	cfg := ui.Config{
		Request:           req,
		Environments:      ws.envs,
		EnvironmentsFile:  ws.envHandle,
		ActiveEnvironment: active,
		Dispatcher:        dispatcher,
		Highlighter:       highlight.New(hlOpts),
		Watcher:           w,
		Bindings:          keys,
		Logger:            logger,
	}
	if store != nil {
		cfg.History = store
	}

	program := tea.NewProgram(ui.New(cfg), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		if errdef.IsCanceled(err) || cmd.Context().Err() != nil {
			return &exitError{code: exitInterrupted}
		}
		return fmt.Errorf("run interactive view: %w", err)
	}
	return nil
}

// startTelemetry installs an OTLP tracer on client when one is configured.
// The returned func flushes pending spans.
func (a *app) startTelemetry(cmd *cobra.Command, client *httpclient.Client, logger *slog.Logger) func() {
	instr, err := telemetry.New(a.client.telemetryConfig(cmd.Flags(), os.Getenv))
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		return func() {}
	}
	client.SetTelemetry(instr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := instr.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}
}
