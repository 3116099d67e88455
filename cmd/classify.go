/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/catmode/catdb/store"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/dataset"
	"github.com/rotblauer/catmode/geo/features"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
	"github.com/spf13/cobra"
)

var optClassifyStrategy = classifier.Combined
var optClassifyJSON bool
var optClassifySnapshot string

type classifyLine struct {
	ID     string             `json:"id,omitempty"`
	Label  mode.TransportMode `json:"label"`
	Mode   mode.TransportMode `json:"mode"`
	Score  float64            `json:"score"`
	Fixes  int                `json:"fixes"`
	Length float64            `json:"length_m"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify [file...]",
	Short: "Classify trips with the working models",
	Long: `Reads trips from the given files, or stdin, and prints each one's detected mode.

Input may be newline-delimited GeoJSON LineString features (gzipped files are fine),
a FeatureCollection, or {"mode": ..., "fixes": [...]} objects.
Trips carrying a Mode label are scored, and an accuracy summary is printed.

Examples:

  catmode classify trips.geojson.gz
  zcat trips.geojson.gz | catmode classify --strategy range --json
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		ctx := context.Background()

		trips, err := readTrips(ctx, args)
		if err != nil {
			slog.Error("Failed to read trips", "error", err)
			os.Exit(1)
		}

		st, err := store.Open(storeConfig())
		if err != nil {
			slog.Error("Failed to open store", "error", err)
			os.Exit(1)
		}
		defer st.Close()
		models, err := st.Working()
		if optClassifySnapshot != "" {
			var snap *store.Snapshot
			snap, err = st.LoadSnapshot(optClassifySnapshot)
			if err == nil {
				models = snap.Models
			}
		}
		if err != nil {
			slog.Error("Failed to read models", "error", err)
			os.Exit(1)
		}

		enc := json.NewEncoder(os.Stdout)
		var labeled []classifier.Labeled
		for _, t := range trips {
			t.Sanitize()
			line := classifyLine{ID: t.ID, Label: t.Mode, Mode: mode.Unknown, Fixes: len(t.Fixes), Length: t.Length()}
			metrics, ok := features.Aggregate(features.ExtractTrip(t))
			if ok {
				ranked := classifier.Rank(metrics, models, optClassifyStrategy)
				for _, r := range ranked {
					if r.Eligible {
						line.Mode, line.Score = r.Mode, r.Score
						break
					}
				}
				if t.IsLabeled() {
					labeled = append(labeled, classifier.Labeled{ID: t.ID, Mode: t.Mode, Metrics: metrics})
				}
			}
			if optClassifyJSON {
				if err := enc.Encode(line); err != nil {
					slog.Error("Failed to write", "error", err)
					os.Exit(1)
				}
				continue
			}
			fmt.Printf("%s %-10s score=%.3f label=%-10s fixes=%d length=%s id=%s\n",
				line.Mode.Emoji(), line.Mode, line.Score, line.Label, line.Fixes,
				humanize.SIWithDigits(line.Length, 1, "m"), line.ID)
		}

		if len(labeled) > 0 {
			ev := classifier.Evaluate(models, labeled, optClassifyStrategy)
			slog.Warn("Labeled trips", "n", ev.Total, "correct", ev.Correct,
				"accuracy", fmt.Sprintf("%.2f%%", ev.Accuracy*100))
		}
	},
}

// readTrips reads every trip from the files, or from stdin if there are none.
func readTrips(ctx context.Context, paths []string) ([]*trip.Trip, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return trip.Decode(data)
	}
	var multi dataset.Multi
	for _, path := range paths {
		multi = append(multi, dataset.GeoJSONFile{Path: path})
	}
	return multi.Trips(ctx)
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	flags := classifyCmd.Flags()
	flags.Var(&optClassifyStrategy, "strategy", "Scoring strategy: range, ideal or combined")
	flags.BoolVar(&optClassifyJSON, "json", false, "Print newline-delimited JSON")
	flags.StringVar(&optClassifySnapshot, "snapshot", "", "Classify with a saved snapshot instead of the working models")
}
