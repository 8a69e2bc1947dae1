package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lbfeed/internal/config"
	"lbfeed/internal/logging"
	"lbfeed/internal/musicbrainz"
	"lbfeed/internal/releasestore"
	"lbfeed/internal/resolver"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <release-mbid>...",
		Short: "Resolve release ids through the store and MusicBrainz",
		Long: `Resolve release ids exactly as a feed request would: cached ids come from the
store, the rest are fetched one per rate window and stored. Refuses to run while
the daemon holds the store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(cmd.Context(), func(cfg *config.Config, store releasestore.Backend) error {
				records, err := resolveOnce(cmd.Context(), cfg, store, args)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, records)
				}
				printRecords(cmd, records)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

// resolveOnce runs a private resolver for a single batch.
func resolveOnce(ctx context.Context, cfg *config.Config, store releasestore.Store, ids []string) ([]releasestore.Record, error) {
	fetcher, err := musicbrainz.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(store, fetcher, resolver.Options{
		Interval:      cfg.MinInterval(),
		QueueCapacity: 1,
		Logger:        logging.NewNop(),
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = res.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	records, err := res.Handle().Submit(ctx, ids)
	// The caller still holds the store lock here, so the next process to take
	// it cannot start a call inside this window.
	if waitErr := musicbrainz.SleepUntil(ctx, res.NextCallAllowed()); waitErr != nil && err == nil {
		err = waitErr
	}
	return records, err
}

func printRecords(cmd *cobra.Command, records []releasestore.Record) {
	out := cmd.OutOrStdout()
	for i, record := range records {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Release:    %s\n", record.ID)
		fmt.Fprintf(out, "Cover art:  %s\n", yesNo(record.HasFrontCoverArt))
		if len(record.ExternalLinks) == 0 {
			fmt.Fprintln(out, "Links:      none")
			continue
		}
		fmt.Fprintf(out, "Links:      %s\n", strconv.Itoa(len(record.ExternalLinks)))
		for _, link := range record.ExternalLinks {
			fmt.Fprintf(out, "  - %s: %s\n", link.RelationType, link.URL)
		}
	}
}
