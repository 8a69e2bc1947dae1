package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lbfeed/internal/config"
	"lbfeed/internal/releasestore"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the release store",
		Long: `Inspect and prune cached release records.

Records are never expired automatically; these commands are the only way to
drop them. They take the daemon lock and refuse to run while the daemon is up.`,
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheCountCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached releases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(cmd.Context(), func(_ *config.Config, store releasestore.Backend) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Release store is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.ID,
						yesNo(entry.HasFrontCoverArt),
						strconv.Itoa(len(entry.ExternalLinks)),
						formatCachedAt(entry.CachedAt),
					})
				}
				writeRows(cmd.OutOrStdout(),
					[]string{"Release", "Cover", "Links", "Cached"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <release-mbid>",
		Short: "Show one cached release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withLockedStore(cmd.Context(), func(_ *config.Config, store releasestore.Backend) error {
				record, found, err := store.Lookup(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("release %s is not cached", id)
				}
				printRecords(cmd, []releasestore.Record{record})
				return nil
			})
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <release-mbid>...",
		Short: "Drop cached releases so the next feed refetches them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(cmd.Context(), func(_ *config.Config, store releasestore.Backend) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					id := strings.TrimSpace(arg)
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed %s\n", id)
					} else {
						fmt.Fprintf(out, "%s was not cached\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached release",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to clear the release store without --yes")
			}
			return ctx.withLockedStore(cmd.Context(), func(_ *config.Config, store releasestore.Backend) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached releases\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm clearing the store")
	return cmd
}

func newCacheCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of cached releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(cmd.Context(), func(_ *config.Config, store releasestore.Backend) error {
				count, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func formatCachedAt(ts time.Time) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.Local().Format("2006-01-02 15:04")
}
