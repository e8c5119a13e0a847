package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// Summary describes a document at a glance.
type Summary struct {
	EventCount    int            `json:"event_count"`
	EdgeCount     int            `json:"edge_count"`
	RootCount     int            `json:"root_count"`
	DanglingEdges int            `json:"dangling_edges"`
	Kinds         map[string]int `json:"kinds"`
	Earliest      time.Time      `json:"earliest,omitempty"`
	Latest        time.Time      `json:"latest,omitempty"`
	ExportedAt    time.Time      `json:"exported_at"`
}

func summarize(g *graph.Graph, doc *graph.Document) Summary {
	s := Summary{
		EventCount: g.Len(),
		EdgeCount:  len(doc.Edges),
		RootCount:  len(g.Roots()),
		Kinds:      make(map[string]int),
		ExportedAt: doc.ExportedAt,
	}
	for _, evt := range doc.Events {
		s.Kinds[evt.Kind().String()]++
		ts := evt.Timestamp()
		if s.Earliest.IsZero() || ts.Before(s.Earliest) {
			s.Earliest = ts
		}
		if ts.After(s.Latest) {
			s.Latest = ts
		}
	}
	for child, parent := range doc.Edges {
		if _, ok := g.Get(child); !ok {
			continue
		}
		if _, ok := g.Get(parent); !ok {
			s.DanglingEdges++
		}
	}
	return s
}

func (a *app) inspectCmd() *cobra.Command {
	var showRoots bool

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize an exported graph document",
		Long: `Summarize an exported graph document: event and edge counts, roots,
edges whose parent is missing, and a count per kind.

Known kinds: ` + strings.Join(kindNames(), ", ") + `.
Use "-" to read the document from stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, doc, err := a.loadGraph(cmd, args[0])
			if err != nil {
				return err
			}
			s := summarize(g, doc)
			out := cmd.OutOrStdout()

			if a.output == "json" {
				return writeJSON(out, s)
			}

			fmt.Fprintf(out, "Events:         %d\n", s.EventCount)
			fmt.Fprintf(out, "Edges:          %d\n", s.EdgeCount)
			fmt.Fprintf(out, "Roots:          %d\n", s.RootCount)
			fmt.Fprintf(out, "Dangling edges: %d\n", s.DanglingEdges)
			if !s.Earliest.IsZero() {
				fmt.Fprintf(out, "Span:           %s .. %s\n",
					s.Earliest.Format(time.RFC3339), s.Latest.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "Exported at:    %s\n", s.ExportedAt.Format(time.RFC3339))

			fmt.Fprintln(out, "Kinds:")
			names := make([]string, 0, len(s.Kinds))
			for name := range s.Kinds {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-15s %d\n", name, s.Kinds[name])
			}

			if showRoots {
				fmt.Fprintln(out)
				return a.writeEvents(out, g.Roots())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRoots, "roots", false, "also list root events")
	return cmd
}

// kindNames lists every kind, for help text.
func kindNames() []string {
	kinds := event.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
