package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/query"
)

// queryCmd builds a command running one built-in query against a document.
func (a *app) queryCmd(use, short, queryName string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FILE EVENT_ID",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := a.loadGraph(cmd, args[0])
			if err != nil {
				return err
			}

			exec := query.NewExecutor(query.NewDefaultRegistry(), g)
			result, err := exec.Execute(cmd.Context(), queryName, args[1])
			if err != nil {
				return err
			}

			switch v := result.(type) {
			case []event.Event:
				return a.writeEvents(cmd.OutOrStdout(), v)
			case event.Event:
				return a.writeEvents(cmd.OutOrStdout(), []event.Event{v})
			default:
				return fmt.Errorf("unexpected %s result %T", queryName, result)
			}
		},
	}
}

// multiQueryCmd runs several named queries for one event. With no query
// names it runs every registered query.
func (a *app) multiQueryCmd() *cobra.Command {
	registry := query.NewDefaultRegistry()

	return &cobra.Command{
		Use:   "query FILE EVENT_ID [QUERY...]",
		Short: "Run named queries for an event",
		Long: `Run named queries for one event and print every result, including
failures. Available queries: ` + strings.Join(registry.List(), ", ") + `.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := a.loadGraph(cmd, args[0])
			if err != nil {
				return err
			}

			names := args[2:]
			if len(names) == 0 {
				names = registry.List()
			}
			results := query.NewExecutor(registry, g).ExecuteMultiple(cmd.Context(), args[1], names...)

			w := cmd.OutOrStdout()
			if a.output == "json" {
				return writeJSON(w, results)
			}
			for _, r := range results {
				fmt.Fprintf(w, "== %s\n", r.QueryName)
				if err := a.writeResult(w, r); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) writeResult(w io.Writer, r query.Result) error {
	if r.Error != "" {
		_, err := fmt.Fprintf(w, "error: %s\n", r.Error)
		return err
	}
	switch v := r.Value.(type) {
	case []event.Event:
		return a.writeEvents(w, v)
	case event.Event:
		return a.writeEvents(w, []event.Event{v})
	case string:
		if v == "" {
			v = "-"
		}
		_, err := fmt.Fprintln(w, v)
		return err
	default:
		_, err := fmt.Fprintf(w, "%v\n", v)
		return err
	}
}
