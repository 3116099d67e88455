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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catmode",
	Short: "Classify GPS trips by transport mode, and learn to do it better",
	Long: `catmode scores trips against per-mode calibration models
(Still, Walking, Bicycle, Motorcycle, Car, Train, Airplane)
and refines those models online from labeled trips.

Models live in a bbolt file under the data dir (default ~/.catmode).
Every flag may also be set in the config file or as a CATMODE_ environment variable,
eg. CATMODE_DATADIR=/tmp/cm catmode models list`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.catmode/catmode.yaml)")
	pFlags.CountP("verbosity", "v", "Log verbosity: -v info, -vv debug")
	pFlags.String("datadir", params.DatadirRoot, "Data directory")

	if err := viper.BindPFlags(pFlags); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(params.DatadirRoot)
		viper.SetConfigType("yaml")
		viper.SetConfigName("catmode")
	}

	viper.SetEnvPrefix("CATMODE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaultSlog applies the verbosity flag to the default logger.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := common.SlogLevelFromVerbosity(viper.GetInt("verbosity"))
	slog.SetLogLoggerLevel(level)
	slog.Debug("Command", "name", cmd.Name(), "args", args, "level", level)
}

// datadir returns the expanded data dir.
func datadir() string {
	dir, err := params.ExpandDatadir(viper.GetString("datadir"))
	if err != nil {
		slog.Error("Bad datadir", "error", err)
		os.Exit(1)
	}
	return dir
}

func storeConfig() *params.StoreConfig {
	config := params.DefaultStoreConfig()
	config.Path = filepath.Join(datadir(), params.ModelsDBName)
	return config
}
