package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLocateCmd(e *env) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Show where the map is centred, resolving a location if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if refresh {
				res := e.app.Session.RefreshLocation(cmd.Context(), e.app.Resolver)
				fmt.Fprintf(out, "%s (via %s)\n", res.Fix.Viewport(), res.Tier)
				return nil
			}
			fix := e.app.Session.EnsureLocation(cmd.Context(), e.app.Resolver)
			fmt.Fprintln(out, fix.Viewport())
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Resolve a fresh location even if one is known")
	return cmd
}

func newSearchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <address>",
		Short: "Look up an address and move the search area there",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			places, err := e.app.Geocoder.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, p := range places {
				fmt.Fprintf(out, "%d. %s (%.5f, %.5f)\n", i+1, p.Formatted, p.Latitude, p.Longitude)
			}
			e.app.Session.SetSearchLocation(places[0].Fix)
			fmt.Fprintf(out, "Search area set to %s\n", places[0].Formatted)
			return nil
		},
	}
}
