package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var radiusCmd = &cobra.Command{
	Use:   "radius <zoom>...",
	Short: "Print clustering radii for zoom levels",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRadius,
}

func init() {
	rootCmd.AddCommand(radiusCmd)
}

func runRadius(cmd *cobra.Command, args []string) error {
	policy, curPolicy, err := policies()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-8s %-14s %14s %14s\n", "zoom", "tier", "cluster_m", "current_m")
	for _, a := range args {
		z, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("zoom %q: %w", a, err)
		}
		fmt.Fprintf(w, "%-8g %-14s %14.2f %14.2f\n", z, policy.Tier(z).Name, policy.RadiusForZoom(z), curPolicy.RadiusForZoom(z))
	}
	return nil
}
