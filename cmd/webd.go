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
	"log"
	"log/slog"

	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/daemon/webd"
	"github.com/rotblauer/catmode/params"
	"github.com/spf13/cobra"
)

var optWebdConfig = params.DefaultWebDaemonConfig()
var optWebdSource sourceFlags

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves classification, models, snapshots and training over HTTP.

Routes:

  GET  /ping                     healthcheck
  GET  /status                   daemon status
  POST /classify[?strategy=]     classify trips in the body
  GET  /models                   working models
  GET  /snapshots                snapshot listing
  GET  /snapshots/{name}         one snapshot
  DEL  /snapshots/{name}         *
  POST /snapshots/{name}/apply   *
  POST /train/start              * optional JSON body overriding trainer flags
  POST /train/stop[?save=&apply=true] *
  GET  /train/state              latest training state
  WS   /train/socket             training states and model events

* requires CATMODE_TOKEN, if set, as X-Catmode-Token or ?api_token=.
Training reads trips from --source and --sqlite.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		optWebdConfig.DataDir = datadir()

		server, err := webd.NewWebDaemon(optWebdConfig, optWebdSource.source())
		if err != nil {
			log.Fatalln(err)
		}
		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()
		if err := server.Run(ctx); err != nil {
			slog.Error("Web daemon failed", "error", err)
		}
		if err := server.Close(); err != nil {
			slog.Error("Web daemon close", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	pFlags := webdCmd.PersistentFlags()
	optWebdSource.register(pFlags)
	pFlags.StringVar(&optWebdConfig.Address, "address", optWebdConfig.Address, "Address to listen on")
	pFlags.StringVar(&optWebdConfig.Network, "network", optWebdConfig.Network, "Network to listen on: tcp, tcp4, tcp6 or unix")
	pFlags.StringVar(&optWebdConfig.Strategy, "strategy", optWebdConfig.Strategy, "Default scoring strategy: range, ideal or combined")
	pFlags.DurationVar(&optWebdConfig.SocketThrottle, "socket-throttle", optWebdConfig.SocketThrottle, "Least time between training states sent to websockets")
	pFlags.Float64Var(&optWebdConfig.Trainer.TargetAccuracy, "target", optWebdConfig.Trainer.TargetAccuracy, "Default training target accuracy")
	pFlags.IntVar(&optWebdConfig.Trainer.BufferSize, "buffer", optWebdConfig.Trainer.BufferSize, "Default training buffer size")
	pFlags.DurationVar(&optWebdConfig.Trainer.Interval, "interval", optWebdConfig.Trainer.Interval, "Default pause between training iterations")
}
