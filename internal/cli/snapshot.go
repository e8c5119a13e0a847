package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/causal/pkg/causal/graph"
	"github.com/randalmurphal/causal/pkg/causal/snapshot"
)

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage saved graph documents",
		Long: `Manage graph documents saved for later analysis. The store is the SQLite
database at snapshot.path; with no path set, the store lives only for the
duration of the command.`,
	}
	cmd.AddCommand(
		a.snapshotSaveCmd(),
		a.snapshotLoadCmd(),
		a.snapshotListCmd(),
		a.snapshotDeleteCmd(),
	)
	return cmd
}

func (a *app) withStore(fn func(store snapshot.Store) error) error {
	store, err := snapshot.Open(a.settings.Snapshot.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *app) snapshotSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save NAME FILE",
		Short: "Save a document file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args[1])
			if err != nil {
				return err
			}
			defer in.Close()

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			doc, err := graph.UnmarshalDocument(data)
			if err != nil {
				return err
			}

			return a.withStore(func(store snapshot.Store) error {
				info, err := store.Save(args[0], doc)
				if err != nil {
					return err
				}
				if a.output == "json" {
					return writeJSON(cmd.OutOrStdout(), info)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d events)\n", info.Name, info.EventCount)
				return nil
			})
		},
	}
}

func (a *app) snapshotLoadCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Print a saved document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store snapshot.Store) error {
				doc, err := store.Load(args[0])
				if err != nil {
					return err
				}
				data, err := graph.MarshalDocument(doc)
				if err != nil {
					return err
				}
				if outPath != "" {
					return os.WriteFile(outPath, data, 0o644)
				}
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the document to a file instead of stdout")
	return cmd
}

func (a *app) snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(store snapshot.Store) error {
				infos, err := store.List()
				if err != nil {
					return err
				}
				if a.output == "json" {
					return writeJSON(cmd.OutOrStdout(), infos)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tEVENTS\tSIZE\tSAVED")
				for _, info := range infos {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n",
						info.Name, info.EventCount, info.Size, info.SavedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) snapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store snapshot.Store) error {
				return store.Delete(args[0])
			})
		},
	}
}
