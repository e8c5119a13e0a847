package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/causal/pkg/causal"
	"github.com/randalmurphal/causal/pkg/causal/event"
	"github.com/randalmurphal/causal/pkg/causal/graph"
	"github.com/randalmurphal/causal/pkg/causal/natsexport"
	"github.com/randalmurphal/causal/pkg/causal/observability"
	"github.com/randalmurphal/causal/pkg/causal/propagate"
	"github.com/randalmurphal/causal/pkg/causal/snapshot"
)

func (a *app) demoCmd() *cobra.Command {
	var (
		outPath  string
		saveName string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record a sample causal chain and print its export",
		Long: `Record a sample checkout flow: a tap opens a scope, a goroutine loads the
cart inside it, and a retry is handed off through a detached context.
The resulting graph is printed as a document, written to --out, or saved
to the snapshot store with --save. When nats.url is configured every
event is also published to NATS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.runDemo(cmd.Context())
			if err != nil {
				return err
			}

			if saveName != "" {
				store, err := snapshot.Open(a.settings.Snapshot.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				if _, err := store.Save(saveName, doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved snapshot %q (%d events)\n", saveName, doc.EventCount)
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
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the document to a file instead of stdout")
	cmd.Flags().StringVar(&saveName, "save", "", "also save the document to the snapshot store under this name")
	return cmd
}

func (a *app) runDemo(ctx context.Context) (*graph.Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	settings := a.settings
	settings.Tracker.EmitScopes = true

	tracker, err := causal.New(settings,
		causal.WithLogger(a.logger),
		causal.WithMetrics(observability.NewMetricsRecorder()),
		causal.WithSpanManager(observability.NewSpanManager()),
	)
	if err != nil {
		return nil, err
	}
	defer tracker.Close()

	if settings.NATS.URL != "" {
		nc, err := natsexport.Dial(settings.NATS.URL, "causalctl-demo")
		if err != nil {
			return nil, err
		}
		defer nc.Close()

		exp := natsexport.New(nc, natsexport.Config{Subject: settings.NATS.Subject, Logger: a.logger})
		if err := exp.Start(tracker.Bus()); err != nil {
			return nil, err
		}
		defer exp.Stop()
	}

	var retry *propagate.Context
	err = tracker.Run(ctx, "checkout tapped", func(ctx context.Context) error {
		if _, err := tracker.Emit(ctx, event.KindUserAction, "tap checkout",
			event.WithMetadataValue("screen", "cart")); err != nil {
			return err
		}

		var (
			wg      sync.WaitGroup
			loadErr error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			loadErr = tracker.Run(ctx, "load cart", func(ctx context.Context) error {
				if _, err := tracker.Emit(ctx, event.KindNetworkEvent, "GET /cart",
					event.WithDuration(84*time.Millisecond),
					event.WithMetadataValue("status", 200)); err != nil {
					return err
				}
				_, err := tracker.Emit(ctx, event.KindStateChange, "cart loaded",
					event.WithMetadataValue("items", 3))
				return err
			})
		}()
		wg.Wait()
		if loadErr != nil {
			return loadErr
		}

		if _, err := tracker.Emit(ctx, event.KindUIRebuild, "cart screen rebuilt"); err != nil {
			return err
		}

		retry, err = propagate.CreateDetached(ctx, "payment retry")
		return err
	})
	if err != nil {
		return nil, err
	}

	// The retry runs later, outside the original scope, restored by hand.
	retryCtx := propagate.Attach(ctx, retry)
	if _, err := tracker.Emit(ctx, event.KindCustom, retry.OriginLabel,
		event.WithEventID(retry.EventID),
		event.WithCause(retry.ParentEventID)); err != nil {
		return nil, err
	}
	if _, err := tracker.Emit(retryCtx, event.KindNetworkEvent, "POST /payments",
		event.WithDuration(310*time.Millisecond),
		event.WithMetadataValue("status", 502)); err != nil {
		return nil, err
	}
	if _, err := tracker.Emit(retryCtx, event.KindCrashEvent, "payment sheet crashed",
		event.WithMetadataValue("error", "nil card token")); err != nil {
		return nil, err
	}

	return tracker.Graph().Export(), nil
}
