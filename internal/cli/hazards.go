package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hazard-reporter/internal/models"
)

func newHazardsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hazards",
		Short: "Report, find and vote on hazards",
	}
	cmd.AddCommand(
		newHazardReportCmd(e),
		newHazardNearCmd(e),
		newHazardShowCmd(e),
		newHazardVoteCmd(e),
	)
	return cmd
}

// pointFlags is an optional coordinate given on the command line.
type pointFlags struct {
	lat, lon float64
}

func (p *pointFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.lat, "lat", 0, "Latitude (default: from the session)")
	cmd.Flags().Float64Var(&p.lon, "lon", 0, "Longitude (default: from the session)")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

func (p *pointFlags) given(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
}

func typeNames() string {
	names := make([]string, 0, len(models.HazardTypes()))
	for _, t := range models.HazardTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func newHazardReportCmd(e *env) *cobra.Command {
	var (
		hazardType  string
		description string
		at          pointFlags
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report a hazard at your location",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := models.HazardReport{Type: models.HazardType(hazardType), Description: description}
			if at.given(cmd) {
				report.Latitude, report.Longitude = at.lat, at.lon
			} else {
				fix := e.app.Session.EnsureLocation(cmd.Context(), e.app.Resolver)
				report.Latitude, report.Longitude = fix.Latitude, fix.Longitude
			}

			h, err := e.app.Hazards.Report(cmd.Context(), e.app.Session.Snapshot(), report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reported %s %s at (%.5f, %.5f)\n", h.Type, h.ID, h.Latitude, h.Longitude)
			return nil
		},
	}
	cmd.Flags().StringVar(&hazardType, "type", "", "Hazard type: "+typeNames())
	cmd.Flags().StringVar(&description, "description", "", "What you saw")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("description")
	at.register(cmd)
	return cmd
}

func newHazardNearCmd(e *env) *cobra.Command {
	var (
		radius float64
		at     pointFlags
	)
	cmd := &cobra.Command{
		Use:   "near",
		Short: "List hazards near the search area or your location",
		RunE: func(cmd *cobra.Command, args []string) error {
			var center models.LocationFix
			switch {
			case at.given(cmd):
				center = models.LocationFix{Latitude: at.lat, Longitude: at.lon}
			default:
				if search, ok := e.app.Session.Snapshot().SearchLocation.Get(); ok {
					center = models.FixFromViewport(search)
				} else {
					center = e.app.Session.EnsureLocation(cmd.Context(), e.app.Resolver)
				}
			}

			found, err := e.app.Hazards.Near(cmd.Context(), center, radius)
			if err != nil {
				return err
			}
			printHazards(cmd.OutOrStdout(), found)
			return nil
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "Search radius in km (default: from config)")
	at.register(cmd)
	return cmd
}

func printHazards(w io.Writer, found []models.HazardDistance) {
	if len(found) == 0 {
		fmt.Fprintln(w, "No hazards found")
		return
	}
	for _, f := range found {
		h := f.Hazard
		fmt.Fprintf(w, "%-36s  %-16s  %6.2f km  +%d/-%d  %s\n", h.ID, h.Type, f.DistanceKm, h.Upvotes, h.Downvotes, h.Description)
	}
}

func newHazardShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one hazard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := e.app.Hazards.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), h); err != nil {
				return err
			}
			if address, err := e.app.Geocoder.Reverse(cmd.Context(), h.Latitude, h.Longitude); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Near %s\n", address)
			}
			return nil
		},
	}
}

func newHazardVoteCmd(e *env) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "vote <id>",
		Short: "Up-vote (or --down vote) a hazard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.Upvote
			if down {
				kind = models.Downvote
			}
			sess := e.app.Session.Snapshot()
			h, err := e.app.Hazards.Vote(cmd.Context(), sess, args[0], kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Votes for %s: +%d/-%d (%s)\n", h.ID, h.Upvotes, h.Downvotes, describeSession(sess))
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Record a down-vote")
	return cmd
}
