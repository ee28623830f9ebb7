package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forgehttp/forge/internal/binaryview"
	"github.com/forgehttp/forge/internal/config"
	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/harexport"
	"github.com/forgehttp/forge/internal/history"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/send"
)

type sendOptions struct {
	har        string
	output     string
	remoteName bool
	noHistory  bool
}

func newSendCmd(a *app) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send [url]",
		Short: "Send one request and print the response",
		Long: heredoc.Doc(`
			Send resolves placeholders against the selected environment, sends the
			request once and prints the status line, headers and body to stdout.
			Timing goes to stderr. Ctrl+C cancels the request in flight.
		`),
		Example: heredoc.Doc(`
			forge send https://httpbin.org/get
			forge send --env prod -X POST --json '{"id": {{id}}}' '{{base_url}}/items'
			forge send --har out.har '{{base_url}}/health'
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSend(cmd, args, opts)
		},
	}
	a.request.bind(cmd.Flags())
	a.client.bind(cmd.Flags())
	cmd.Flags().StringVar(&opts.har, "har", "", "Write the exchange as a HAR 1.2 file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the raw response body to a file")
	cmd.Flags().BoolVarP(&opts.remoteName, "remote-name", "O", false, "Save the body under the name the server suggests")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this send in history")
	return cmd
}

func (a *app) runSend(cmd *cobra.Command, args []string, opts *sendOptions) error {
	ctx := cmd.Context()
	ws, err := a.loadWorkspace()
	if err != nil {
		return err
	}
	req, err := a.request.build(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.URL) == "" {
		return errdef.New(errdef.CodeBuild, "no URL given")
	}

	client := httpclient.NewClient(a.client.httpSettings(cmd.Flags(), ws.settings.HTTP).ClientOptions())
	defer a.startTelemetry(cmd, client, a.logger)()

	dopts := []send.Option{send.WithLogger(a.logger)}
	if !opts.noHistory {
		store, err := history.Open(config.HistoryPath(), ws.settings.History.MaxEntries)
		if err != nil {
			a.logger.Warn("history disabled", "error", err)
		} else {
			defer store.Close()
			dopts = append(dopts, send.WithRecorder(store))
		}
	}
	d := send.NewDispatcher(client, dopts...)
	defer d.Close()

	d.Send(send.Snapshot{Request: req, Environment: ws.environment})

	var res send.Result
	select {
	case res = <-d.Results():
	case <-ctx.Done():
		d.Cancel()
		res = <-d.Results()
	}
	if res.Canceled() {
		fmt.Fprintln(a.stderr, "canceled")
		return &exitError{code: exitInterrupted}
	}
	for _, name := range res.Unresolved {
		fmt.Fprintf(a.stderr, "warning: unresolved placeholder {{%s}}\n", name)
	}
	if res.Err != nil {
		return &exitError{code: 1, err: res.Err}
	}

	resp := res.Response
	if opts.remoteName && opts.output == "" {
		opts.output = binaryview.FilenameHint(resp.Header("Content-Disposition"), resp.EffectiveURL, resp.ContentType())
	}
	if err := a.printResponse(resp, opts.output == ""); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "%s · %s · %s\n", resp.Status(), resp.Timing.Total.Round(time.Millisecond), humanize.IBytes(uint64(resp.SizeBytes)))

	if opts.output != "" {
		if err := writeBody(opts.output, resp.Raw); err != nil {
			return err
		}
		fmt.Fprintf(a.stderr, "saved body to %s\n", opts.output)
	}
	if opts.har != "" {
		if err := harexport.WriteFile(opts.har, resp, version); err != nil {
			return err
		}
	}
	return nil
}

// printResponse writes the status line and headers, then the body when
// withBody is set. Binary bodies are summarised rather than dumped to a
// terminal.
func (a *app) printResponse(resp *httpclient.Response, withBody bool) error {
	w := a.stdout
	fmt.Fprintf(w, "%s %s\n", resp.Proto, resp.Status())
	for _, h := range resp.Headers {
		fmt.Fprintf(w, "%s: %s\n", h.Name, h.Value)
	}
	if !withBody {
		return nil
	}
	switch resp.Body.Kind {
	case httpclient.BodyEmpty:
		return nil
	case httpclient.BodyBinary:
		_, err := fmt.Fprintf(w, "\n[binary body, %s; use -o to save it]\n", humanize.IBytes(uint64(len(resp.Raw))))
		return err
	default:
		if _, err := io.WriteString(w, "\n"+resp.Body.Text); err != nil {
			return err
		}
		if !strings.HasSuffix(resp.Body.Text, "\n") {
			_, err := io.WriteString(w, "\n")
			return err
		}
		return nil
	}
}

func writeBody(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errdef.Wrap(errdef.CodeFilesystem, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write %s", path)
	}
	return nil
}
