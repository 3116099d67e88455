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
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/catdb/flat"
	"github.com/rotblauer/catmode/catdb/store"
	"github.com/spf13/cobra"
)

var optModelsOut string
var optModelsName string
var optModelsUpload bool
var optModelsArchive bool

// withStore opens the store for one command and exits on any error fn returns.
func withStore(fn func(st *store.Store) error) {
	st, err := store.Open(storeConfig())
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	err = fn(st)
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		slog.Error("Failed", "error", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and manage the working models and saved snapshots",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, most accurate first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			list, err := st.ListSnapshots()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tACCURACY\tSAMPLES\tITERATIONS\tSTRATEGY\tCREATED")
			for _, meta := range list {
				fmt.Fprintf(w, "%s\t%s%%\t%d\t%s\t%s\t%s\n", meta.Name, meta.AccuracyPercent(),
					meta.TotalSamples, humanize.Comma(int64(meta.Iterations)), meta.Strategy,
					humanize.Time(meta.CreatedAt))
			}
			return w.Flush()
		})
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print the working models, or a snapshot, as JSON",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			if len(args) == 1 {
				snap, err := st.LoadSnapshot(args[0])
				if err != nil {
					return err
				}
				return printJSON(snap)
			}
			models, err := st.Working()
			if err != nil {
				return err
			}
			return printJSON(models)
		})
	},
}

var modelsSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save the working models as a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			models, err := st.Working()
			if err != nil {
				return err
			}
			_, err = st.CreateSnapshot(store.Metadata{Name: args[0]}, models)
			return err
		})
	},
}

var modelsLoadCmd = &cobra.Command{
	Use:     "load NAME",
	Aliases: []string{"use"},
	Short:   "Make a snapshot's models the working models",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			_, err := st.ApplySnapshot(args[0])
			return err
		})
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			return st.DeleteSnapshot(args[0])
		})
	},
}

var modelsExportCmd = &cobra.Command{
	Use:   "export NAME",
	Short: "Write a snapshot as JSON to stdout or --out",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			data, err := st.Export(args[0])
			if err != nil {
				return err
			}
			if optModelsUpload {
				if _, err := st.UploadExport(context.Background(), args[0]); err != nil {
					return err
				}
			}
			if optModelsArchive {
				w, err := flat.NewFlatWithRoot(datadir()).Exports().NamedGZWriter(args[0] + ".json.gz")
				if err != nil {
					return err
				}
				if _, err := w.Write(data); err != nil {
					_ = w.Close()
					return err
				}
				if err := w.Close(); err != nil {
					return err
				}
				slog.Info("Archived snapshot", "path", w.Path())
			}
			if optModelsOut == "" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(optModelsOut, data, 0644)
		})
	},
}

var modelsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Save an exported snapshot, optionally under a new --name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			meta, err := st.Import(data, optModelsName)
			if err != nil {
				return err
			}
			fmt.Println(meta.Name)
			return nil
		})
	},
}

var modelsApplyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Make the models in a JSON file (mode name to model) the working models",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var models calibration.Models
			if err := json.Unmarshal(data, &models); err != nil {
				return err
			}
			for m, model := range models {
				if model == nil {
					delete(models, m)
					continue
				}
				model.Clip()
			}
			return st.Apply(models)
		})
	},
}

var modelsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the working models; the built-in defaults apply again",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			return st.Reset()
		})
	},
}

var modelsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the working models; nothing classifies until models are applied",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		withStore(func(st *store.Store) error {
			return st.Clear()
		})
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsShowCmd, modelsSaveCmd, modelsLoadCmd,
		modelsDeleteCmd, modelsExportCmd, modelsImportCmd, modelsApplyCmd,
		modelsResetCmd, modelsClearCmd)

	modelsExportCmd.Flags().StringVarP(&optModelsOut, "out", "o", "", "Write to this file instead of stdout")
	modelsExportCmd.Flags().BoolVar(&optModelsArchive, "archive", false, "Also write a gzipped copy under the data dir's exports/")
	modelsExportCmd.Flags().BoolVar(&optModelsUpload, "upload", false, "Also upload to S3 (AWS_BUCKETNAME env)")
	modelsImportCmd.Flags().StringVar(&optModelsName, "name", "", "Save under this name instead of the exported one")
}
