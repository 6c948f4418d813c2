package main

import (
	"github.com/spf13/cobra"

	"github.com/campusaid/aidmap/internal/core/clustering"
)

var (
	divisor float64
	minZoom float64
)

var rootCmd = &cobra.Command{
	Use:          "clusterctl",
	Short:        "Inspect map clustering offline",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Float64Var(&divisor, "divisor", clustering.DefaultDivisor, "zoom divisor applied to tier radii")
	rootCmd.PersistentFlags().Float64Var(&minZoom, "min-zoom", clustering.DefaultMinZoom, "floor applied to zoom before scaling")
}

// policies returns the cluster and current-location policies with the
// scaling flags applied.
func policies() (clustering.RadiusPolicy, clustering.RadiusPolicy, error) {
	p, err := clustering.DefaultPolicy().WithScaling(divisor, minZoom)
	if err != nil {
		return clustering.RadiusPolicy{}, clustering.RadiusPolicy{}, err
	}
	cur, err := clustering.CurrentLocationPolicy().WithScaling(divisor, minZoom)
	if err != nil {
		return clustering.RadiusPolicy{}, clustering.RadiusPolicy{}, err
	}
	return p, cur, nil
}
