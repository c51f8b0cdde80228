package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ScopesResult is the output of the scopes command.
type ScopesResult struct {
	Scopes []string `json:"scopes"`
}

// NewScopesCommand creates the scopes command.
func NewScopesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "List scopes that have history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScopes(rootOpts, cmd)
		},
	}
}

func runScopes(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	log, err := openLog(opts)
	if err != nil {
		return err
	}
	defer log.Close()

	scopes, err := log.Scopes(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list scopes", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(ScopesResult{Scopes: scopes})
	}

	w := cmd.OutOrStdout()
	if len(scopes) == 0 {
		fmt.Fprintln(w, "No scopes found.")
		return nil
	}
	for _, s := range scopes {
		fmt.Fprintln(w, s)
	}
	return nil
}
