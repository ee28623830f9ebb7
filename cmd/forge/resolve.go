package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/forgehttp/forge/internal/vars"
)

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve TEXT",
		Short: "Show how placeholders in TEXT resolve",
		Long: heredoc.Doc(`
			Resolve prints TEXT with placeholders substituted for display, followed
			by one line per placeholder with its status. Secret values are masked.
		`),
		Example: heredoc.Doc(`
			forge resolve '{{base_url}}/users/{{id}}'
			forge resolve --env-file .env 'Bearer {{token}}'
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.loadWorkspace()
			if err != nil {
				return err
			}
			resolved := vars.FromEnvironment(ws.environment, nil).Resolve(args[0])
			return writeResolved(a, resolved)
		},
	}
}

func writeResolved(a *app, resolved vars.Resolved) error {
	fmt.Fprintln(a.stdout, resolved.Value)
	if len(resolved.Spans) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	seen := make(map[string]struct{}, len(resolved.Spans))
	for _, span := range resolved.Spans {
		if _, ok := seen[span.Name]; ok {
			continue
		}
		seen[span.Name] = struct{}{}
		value := span.Value
		switch span.Status {
		case vars.StatusSecret:
			value = vars.SecretMask
		case vars.StatusUnresolved:
			value = "-"
		}
		fmt.Fprintf(tw, "{{%s}}\t%s\t%s\n", span.Name, span.Status, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if names := resolved.Unresolved(); len(names) > 0 {
		fmt.Fprintf(a.stderr, "warning: %d unresolved: %s\n", len(names), strings.Join(names, ", "))
	}
	return nil
}
