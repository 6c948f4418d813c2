package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusaid/aidmap/internal/core/clustering"
	"github.com/campusaid/aidmap/internal/core/domain"
)

var (
	clusterZoom      float64
	clusterRadius    float64
	clusterLat       float64
	clusterLon       float64
	clusterJSON      bool
	clusterThreshold int
)

// point is one entry of the input file.
type point struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p point) Position() domain.GeoPoint { return domain.GeoPoint{Lat: p.Lat, Lon: p.Lon} }

type marker struct {
	Center            domain.GeoPoint `json:"center"`
	Count             int             `json:"count"`
	IDs               []string        `json:"ids"`
	AtCurrentLocation bool            `json:"at_current_location,omitempty"`
	TapZoom           float64         `json:"tap_zoom"`
}

type clusterOutput struct {
	Zoom                float64  `json:"zoom"`
	RadiusMeters        float64  `json:"radius_meters"`
	Points              int      `json:"points"`
	Markers             []marker `json:"markers"`
	ShowCurrentLocation *bool    `json:"show_current_location,omitempty"`
	Took                string   `json:"took"`
}

var clusterCmd = &cobra.Command{
	Use:   "cluster <points.json>",
	Short: "Cluster a JSON array of {id, lat, lon} points",
	Long: `Reads a JSON array of points and prints the markers they form at the
given zoom. Pass --lat/--lon to also tag the marker at your position.`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	clusterCmd.Flags().Float64VarP(&clusterZoom, "zoom", "z", 14, "map zoom level")
	clusterCmd.Flags().Float64Var(&clusterRadius, "radius", 0, "override the radius in meters (0 uses the zoom policy)")
	clusterCmd.Flags().Float64Var(&clusterLat, "lat", 0, "current location latitude")
	clusterCmd.Flags().Float64Var(&clusterLon, "lon", 0, "current location longitude")
	clusterCmd.Flags().IntVar(&clusterThreshold, "index-threshold", clustering.DefaultIndexThreshold, "input size from which the R-tree is used (negative disables it)")
	clusterCmd.Flags().BoolVar(&clusterJSON, "json", false, "output markers as JSON")
	clusterCmd.MarkFlagsRequiredTogether("lat", "lon")
	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	points, err := readPoints(args[0])
	if err != nil {
		return err
	}

	policy, curPolicy, err := policies()
	if err != nil {
		return err
	}
	radius := clusterRadius
	if radius <= 0 {
		radius = policy.RadiusForZoom(clusterZoom)
	}

	start := time.Now()
	clusters := clustering.ClusterWith(points, radius, clustering.Options{IndexThreshold: clusterThreshold})
	took := time.Since(start)

	out := clusterOutput{
		Zoom:         clusterZoom,
		RadiusMeters: radius,
		Points:       len(points),
		Markers:      make([]marker, len(clusters)),
		Took:         took.String(),
	}
	for i, c := range clusters {
		ids := make([]string, len(c))
		for j, p := range c {
			ids[j] = p.ID
		}
		out.Markers[i] = marker{
			Center:  clustering.MarkerPosition(c),
			Count:   len(c),
			IDs:     ids,
			TapZoom: clustering.TapZoom(len(c), clusterZoom),
		}
	}

	if cmd.Flags().Changed("lat") {
		current := domain.GeoPoint{Lat: clusterLat, Lon: clusterLon}
		if !current.Valid() {
			return fmt.Errorf("current location (%v, %v) out of range", clusterLat, clusterLon)
		}
		near := curPolicy.RadiusForZoom(clusterZoom)
		for i, tagged := range clustering.TagCurrentLocation(clusters, current, near) {
			out.Markers[i].AtCurrentLocation = tagged
		}
		show := !clustering.NearAny(clusters, current, near)
		out.ShowCurrentLocation = &show
	}

	w := cmd.OutOrStdout()
	if clusterJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal markers: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "%d points -> %d markers at zoom %.2f (radius %.1f m, %s)\n",
		out.Points, len(out.Markers), out.Zoom, out.RadiusMeters, out.Took)
	for i, m := range out.Markers {
		here := ""
		if m.AtCurrentLocation {
			here = "  <- you"
		}
		fmt.Fprintf(w, "  [%d] %3d @ %.6f,%.6f  tap->%.0f%s\n", i+1, m.Count, m.Center.Lat, m.Center.Lon, m.TapZoom, here)
	}
	if out.ShowCurrentLocation != nil && *out.ShowCurrentLocation {
		fmt.Fprintln(w, "  current location shown as its own pin")
	}
	return nil
}

func readPoints(path string) ([]point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}
	var points []point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("parse points: %w", err)
	}
	for i, p := range points {
		if !p.Position().Valid() {
			return nil, fmt.Errorf("point %d (%q) out of range", i, p.ID)
		}
		if p.ID == "" {
			points[i].ID = fmt.Sprintf("#%d", i)
		}
	}
	if len(points) == 0 {
		return nil, errors.New("no points in input")
	}
	return points, nil
}
