// Package cli implements the causalctl command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/causal/pkg/causal/config"
	"github.com/randalmurphal/causal/pkg/causal/observability"
)

// app holds state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	output  string

	settings config.Settings
	logger   *slog.Logger
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the causalctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "causalctl",
		Short: "Inspect causal event graphs",
		Long: `causalctl reads exported causal graph documents, answers root-cause and
impact queries over them, and manages the snapshot store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (yaml or json)")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text or json")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	flags.String("log-format", config.DefaultLogFormat, "log format: text or json")
	flags.String("snapshot-path", "", "snapshot database path (empty for in-memory)")

	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("snapshot.path", flags.Lookup("snapshot-path"))

	root.AddCommand(
		a.inspectCmd(),
		a.queryCmd("ancestors", "Show the chain leading to an event, root first", "ancestors"),
		a.queryCmd("descendants", "Show everything an event caused, level order", "descendants"),
		a.queryCmd("children", "Show the direct effects of an event", "children"),
		a.queryCmd("root-cause", "Show the oldest resolvable ancestor of an event", "root_cause"),
		a.multiQueryCmd(),
		a.demoCmd(),
		a.snapshotCmd(),
		versionCmd(),
	)
	return root
}

// init loads settings: file first, then CAUSAL_* environment variables and
// flags on top.
func (a *app) init(stderr io.Writer) error {
	a.v.SetEnvPrefix("CAUSAL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	settings := config.Defaults()
	if a.cfgFile != "" {
		loaded, err := config.FromFile(a.cfgFile)
		if err != nil {
			return err
		}
		settings = loaded
	}

	overlay := func(key string, dst *string) {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}
	overlay("log.level", &settings.Log.Level)
	overlay("log.format", &settings.Log.Format)
	overlay("snapshot.path", &settings.Snapshot.Path)
	overlay("nats.url", &settings.NATS.URL)
	overlay("nats.subject", &settings.NATS.Subject)

	if err := settings.Validate(); err != nil {
		return err
	}
	a.settings = settings

	if a.output != "text" && a.output != "json" {
		return fmt.Errorf("unsupported output format %q", a.output)
	}

	a.logger = observability.NewLogger(stderr, settings.Log.Format, observability.ParseLevel(settings.Log.Level))
	return nil
}

// openInput opens path for reading, with "-" meaning stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
