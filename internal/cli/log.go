package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/history"
)

// EntryInfo describes one stored history entry.
type EntryInfo struct {
	Position    int64  `json:"position"`
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	Size        int    `json:"size"`
}

// LogResult is the output of the log command.
type LogResult struct {
	Scope   string      `json:"scope"`
	Entries []EntryInfo `json:"entries"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log <scope>",
		Short: "List the stored entries of a scope",
		Long: `List every stored entry of a scope, oldest first.

Examples:
  rewind log doc-42
  rewind log doc-42 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(rootOpts, cmd, args[0])
		},
	}
}

func runLog(opts *RootOptions, cmd *cobra.Command, scope string) error {
	ctx := context.Background()

	log, err := openLog(opts)
	if err != nil {
		return err
	}
	defer log.Close()

	entries, err := log.LoadAll(ctx, scope)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}

	result := LogResult{Scope: scope, Entries: make([]EntryInfo, 0, len(entries))}
	for _, e := range entries {
		result.Entries = append(result.Entries, entryInfo(e))
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(w, "No history for scope %q.\n", scope)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POSITION\tKIND\tCREATED\tSIZE\tDESCRIPTION")
	for _, e := range result.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", e.Position, e.Kind, e.CreatedAt, e.Size, e.Description)
	}
	return tw.Flush()
}

func entryInfo(e history.Entry) EntryInfo {
	return EntryInfo{
		Position:    e.Position,
		Kind:        string(e.Kind),
		ID:          e.ID,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		Size:        len(e.Payload),
	}
}
