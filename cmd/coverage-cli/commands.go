package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"reach-coverage/internal/app"
	"reach-coverage/internal/config"
	"reach-coverage/internal/coverage"
	"reach-coverage/internal/geo"
	"reach-coverage/internal/mesh"
	"reach-coverage/internal/scenario"
)

var facilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "List catalog facilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := scenario.Load(catalogPath)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd.OutOrStdout(), cat.Facilities)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tLAT\tLON")
		for _, f := range cat.Facilities {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%.6f\n", f.ID, f.Name, f.Category, f.Lat, f.Lon)
		}
		return tw.Flush()
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List catalog scenarios with resolved request parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := scenario.Load(catalogPath)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd.OutOrStdout(), cat.Scenarios)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tARRIVE BY\tCUTOFF\tDEPART AFTER\tLABEL")
		for _, s := range cat.Scenarios {
			p := cat.Resolve(s.ID)
			dep := "-"
			if p.Departure != nil {
				dep = p.Departure.Time
			}
			fmt.Fprintf(tw, "%s\t%s\t%ds\t%s\t%s\n", s.ID, p.Arrival.Time, p.Arrival.CutoffSeconds, dep, s.Label)
		}
		return tw.Flush()
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [scenario-id]",
	Short: "Resolve a scenario id to request parameters (unknown ids fall back to the default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := scenario.Load(catalogPath)
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return writeJSON(cmd.OutOrStdout(), cat.Resolve(id))
	},
}

var (
	searchFacility string
	searchScenario string
	searchYear     int
	searchWalk     int
	searchBoundary string
	searchNoPop    bool
	searchTimeout  time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one coverage search against the configured OTP and reinfolib endpoints",
	RunE:  runSearch,
}

var (
	aggMesh     string
	aggIso      string
	aggBoundary string
	aggYear     int
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate a local population mesh against a local isochrone GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := scenario.Load(catalogPath)
		if err != nil {
			return err
		}
		st, err := aggregateFiles(cat, aggMesh, aggIso, aggBoundary, aggYear)
		if err != nil {
			return err
		}
		return printStats(cmd.OutOrStdout(), st)
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchFacility, "facility", "f", "", "Facility id")
	searchCmd.Flags().StringVarP(&searchScenario, "scenario", "s", "", "Scenario id (default: first in catalog)")
	searchCmd.Flags().IntVar(&searchYear, "year", 0, "Population year (default: POPULATION_YEAR)")
	searchCmd.Flags().IntVar(&searchWalk, "walk", 0, "Max walk distance in metres (default: MAX_WALK_DISTANCE)")
	searchCmd.Flags().StringVar(&searchBoundary, "boundary", "", "Boundary id (default: BOUNDARY_ID)")
	searchCmd.Flags().BoolVar(&searchNoPop, "no-population", false, "Skip population loading (reachability only)")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 2*time.Minute, "Overall timeout")
	_ = searchCmd.MarkFlagRequired("facility")

	aggregateCmd.Flags().StringVar(&aggMesh, "mesh", "", "Population mesh GeoJSON FeatureCollection")
	aggregateCmd.Flags().StringVar(&aggIso, "iso", "", "Isochrone GeoJSON FeatureCollection (first feature is used)")
	aggregateCmd.Flags().StringVar(&aggBoundary, "boundary", "himi", "Boundary id; empty disables the filter")
	aggregateCmd.Flags().IntVar(&aggYear, "year", 2020, "Population year")
	_ = aggregateCmd.MarkFlagRequired("mesh")
	_ = aggregateCmd.MarkFlagRequired("iso")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sel := a.Controller.Selection()
	sel.FacilityID = searchFacility
	if searchScenario != "" {
		sel.ScenarioID = searchScenario
	}
	if searchYear != 0 {
		sel.Year = searchYear
	}
	if searchWalk != 0 {
		sel.MaxWalkDistance = searchWalk
	}
	if searchBoundary != "" {
		sel.BoundaryID = searchBoundary
	}
	if _, err := a.Controller.SetSelection(sel); err != nil {
		return err
	}
	if !searchNoPop {
		if err := a.Controller.LoadPopulation(ctx); err != nil {
			return fmt.Errorf("load population: %w", err)
		}
	}
	snap, err := a.Controller.Search(ctx)
	var inf *coverage.InfeasibleScenarioError
	if err != nil && !errors.As(err, &inf) {
		return err
	}
	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), snap)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "search %s facility=%s scenario=%s year=%d walk=%dm\n",
		snap.SearchID, sel.FacilityID, sel.ScenarioID, sel.Year, sel.MaxWalkDistance)
	if snap.Notice != "" {
		fmt.Fprintln(out, snap.Notice)
	}
	if snap.Stats == nil {
		fmt.Fprintln(out, "stats: not computed")
		return nil
	}
	return printStats(out, *snap.Stats)
}

// aggregateFiles 离线聚合：首个要素的多边形作为到达圈
func aggregateFiles(cat *scenario.Catalog, meshPath, isoPath, boundaryID string, year int) (mesh.Stats, error) {
	meshFC, err := readFC(meshPath)
	if err != nil {
		return mesh.Stats{}, err
	}
	isoFC, err := readFC(isoPath)
	if err != nil {
		return mesh.Stats{}, err
	}
	var polys []orb.Polygon
	if len(isoFC.Features) > 0 && isoFC.Features[0].Geometry != nil {
		polys = geo.Polygons(isoFC.Features[0].Geometry)
	}
	var boundary *orb.Polygon
	if boundaryID != "" {
		b, err := cat.Boundary(boundaryID)
		if err != nil {
			return mesh.Stats{}, err
		}
		p := b.Polygon()
		boundary = &p
	}
	return mesh.Aggregate(meshFC, boundary, polys, mesh.YearKey(year)), nil
}

func readFC(path string) (*geojson.FeatureCollection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

func printStats(w io.Writer, st mesh.Stats) error {
	if jsonOut {
		return writeJSON(w, st)
	}
	_, err := fmt.Fprintf(w, "total=%.0f covered=%.0f percentage=%.2f%%\n", st.TotalPopulation, st.CoveredPopulation, st.Percentage)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
