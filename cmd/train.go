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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/catmode/catdb/store"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/metrics/influxdb"
	"github.com/rotblauer/catmode/params"
	"github.com/rotblauer/catmode/trainer"
	"github.com/spf13/cobra"
)

var (
	optTrainSource      sourceFlags
	optTrainConfig      = params.DefaultTrainerConfig()
	optTrainStrategy    = classifier.Combined
	optTrainRuns        int
	optTrainSave        string
	optTrainApply       bool
	optTrainFromWorking bool
	optTrainInflux      bool
	optTrainUpload      bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train calibration models from labeled trips",
	Long: `Runs the online trainer over labeled trips until it converges,
reaches --max-iterations, or is interrupted.

Each iteration buffers one trip's batch model. Full buffers are merged into the
mode's working model. Models are evaluated every --eval-every iterations and
retuned every --buffer x --eval-every iterations.

With --runs N, N independently seeded runs train at once over the same dataset
and the most accurate one wins.

Examples:

  catmode train --source labeled.geojson.gz --target 0.9 --save nov --apply
  catmode train --sqlite fixes.db --runs 4 --max-iterations 5000 --influx
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		logger := slog.With("d", "cmd")

		source := optTrainSource.source()
		if source == nil {
			logger.Error("No trips to train on: use --source, --sqlite, or fill the data dir's datasets/ folder")
			os.Exit(1)
		}

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()

		st, err := store.Open(storeConfig())
		if err != nil {
			logger.Error("Failed to open store", "error", err)
			os.Exit(1)
		}
		defer st.Close()

		cfg := trainer.Config{TrainerConfig: optTrainConfig, Strategy: optTrainStrategy}
		if optTrainFromWorking {
			cfg.InitialModels, err = st.Working()
			if err != nil {
				logger.Error("Failed to read working models", "error", err)
				os.Exit(1)
			}
		}

		started := time.Now()
		cache := trainer.NewDatasetCache(source)
		var final trainer.State
		var history []trainer.State
		if optTrainRuns > 1 {
			var all []trainer.State
			final, all, err = trainer.BestOf(ctx, cache, optTrainRuns, cfg)
			for i, s := range all {
				logger.Info("Run finished", "i", i, "run", s.RunID[:8], "status", s.Status,
					"accuracy", common.Percent(s.Accuracy, 2), "iterations", s.Iteration)
			}
			history = all
		} else {
			final, history, err = trainOnce(ctx, cache, cfg, logger)
		}
		if err != nil {
			logger.Error("Training failed", "error", err)
			os.Exit(1)
		}

		fmt.Printf("run=%s status=%s accuracy=%.2f%% (%d/%d) iterations=%s epochs=%d elapsed=%s\n",
			final.RunID[:8], final.Status, final.Accuracy*100, final.CorrectSamples, final.TotalSamples,
			humanize.Comma(int64(final.Iteration)), final.Epoch, final.Elapsed.Round(time.Millisecond))

		if optTrainSave != "" {
			meta, err := st.CreateSnapshot(store.Metadata{
				Name:         optTrainSave,
				Accuracy:     final.Accuracy,
				SampleCounts: final.SampleCounts,
				TotalSamples: final.TotalSamples,
				Iterations:   final.Iteration,
				Strategy:     final.Strategy,
			}, final.Models)
			if err != nil {
				logger.Error("Failed to save snapshot", "error", err)
				os.Exit(1)
			}
			if optTrainUpload {
				if _, err := st.UploadExport(context.Background(), meta.Name); err != nil {
					logger.Error("Failed to upload snapshot", "error", err)
				}
			}
		}
		if optTrainApply {
			if err := st.Apply(final.Models); err != nil {
				logger.Error("Failed to apply models", "error", err)
				os.Exit(1)
			}
		}
		if optTrainInflux {
			if err := influxdb.ExportTrainingStates(started, history); err != nil {
				logger.Error("Failed to export to InfluxDB", "error", err)
			}
		}
	},
}

// trainOnce runs one trainer to its end, collecting every published state.
func trainOnce(ctx context.Context, cache *trainer.DatasetCache, cfg trainer.Config, logger *slog.Logger) (trainer.State, []trainer.State, error) {
	tr := trainer.New(cache)
	updates := make(chan trainer.State, 16)
	sub := tr.Subscribe(updates)
	defer sub.Unsubscribe()

	if err := tr.Start(ctx, cfg); err != nil {
		return trainer.State{}, nil, err
	}

	var history []trainer.State
	for {
		select {
		case s := <-updates:
			history = append(history, s)
			logger.Info("Training", "iteration", humanize.Comma(int64(s.Iteration)), "epoch", s.Epoch,
				"accuracy", common.Percent(s.Accuracy, 2), "status", s.Status)
			if !s.Running {
				tr.Wait()
				return tr.State(), history, nil
			}
		case err := <-sub.Err():
			return tr.State(), history, err
		}
	}
}

func init() {
	rootCmd.AddCommand(trainCmd)

	flags := trainCmd.Flags()
	optTrainSource.register(flags)
	flags.Var(&optTrainStrategy, "strategy", "Scoring strategy: range, ideal or combined")
	flags.Float64Var(&optTrainConfig.TargetAccuracy, "target", optTrainConfig.TargetAccuracy, "Stop once evaluation accuracy reaches this (0 disables)")
	flags.IntVar(&optTrainConfig.MaxIterations, "max-iterations", optTrainConfig.MaxIterations, "Stop after this many iterations (0 runs until interrupted)")
	flags.IntVar(&optTrainConfig.BufferSize, "buffer", optTrainConfig.BufferSize, "Batch models buffered per mode before merging")
	flags.Float64Var(&optTrainConfig.WeightCap, "weight-cap", optTrainConfig.WeightCap, "Cap on accumulated model confidence (0 is uncapped)")
	flags.Float64Var(&optTrainConfig.LearningRate, "learning-rate", optTrainConfig.LearningRate, "Adaptive learning rate")
	flags.IntVar(&optTrainConfig.EvalEvery, "eval-every", optTrainConfig.EvalEvery, "Iterations between evaluations")
	flags.IntVar(&optTrainConfig.HistoryLimit, "history", optTrainConfig.HistoryLimit, "Accuracy history length, at most 100")
	flags.DurationVar(&optTrainConfig.Interval, "interval", optTrainConfig.Interval, "Pause between iterations")
	flags.DurationVar(&optTrainConfig.ProgressInterval, "progress", optTrainConfig.ProgressInterval, "Progress log interval")
	flags.Int64Var(&optTrainConfig.Seed, "seed", optTrainConfig.Seed, "Random seed")
	flags.BoolVar(&optTrainConfig.CleanCache, "clean-cache", false, "Reload the dataset even if cached")
	flags.IntVar(&optTrainRuns, "runs", 1, "Train this many seeded runs and keep the best")
	flags.StringVar(&optTrainSave, "save", "", "Save the final models as a snapshot with this name")
	flags.BoolVar(&optTrainApply, "apply", false, "Make the final models the working models")
	flags.BoolVar(&optTrainFromWorking, "from-working", false, "Start from the working models instead of nothing")
	flags.BoolVar(&optTrainInflux, "influx", false, "Export training states to InfluxDB (INFLUXDB_* env)")
	flags.BoolVar(&optTrainUpload, "upload", false, "Upload the saved snapshot to S3 (AWS_BUCKETNAME env)")
}
