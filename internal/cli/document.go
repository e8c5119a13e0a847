package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
)

// loadGraph reads a document from path and imports it into a fresh graph
// sized to hold all of it.
func (a *app) loadGraph(cmd *cobra.Command, path string) (*graph.Graph, *graph.Document, error) {
	in, err := openInput(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := graph.UnmarshalDocument(data)
	if err != nil {
		return nil, nil, err
	}

	// Offline inspection keeps everything in the document.
	hardCap := a.settings.Graph.HardCap
	if len(doc.Events) > hardCap {
		hardCap = len(doc.Events)
	}
	g := graph.New(graph.Config{
		HardCap: hardCap,
		Window:  a.settings.Graph.Window.Std(),
		Logger:  a.logger,
	})
	if err := g.Import(cmd.Context(), doc); err != nil {
		return nil, nil, err
	}
	return g, doc, nil
}

// writeJSON encodes v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeEvents prints events as a table, or as a JSON array.
func (a *app) writeEvents(w io.Writer, events []event.Event) error {
	if a.output == "json" {
		if events == nil {
			events = []event.Event{}
		}
		return writeJSON(w, events)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tLABEL\tPARENT\tTIMESTAMP")
	for _, evt := range events {
		parent := evt.ParentID()
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			evt.ID(), evt.Kind(), evt.Label(), parent,
			evt.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"))
	}
	return tw.Flush()
}
