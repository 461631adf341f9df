//    Copyright 2026 SmartBin Authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smartbin/BinWorker/pkg/config"
	"github.com/smartbin/BinWorker/pkg/logging"
	"github.com/smartbin/BinWorker/pkg/service/bridge"
)

const (
	projectName = "SmartBin Worker"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

var (
	cmdMain = &cobra.Command{
		Use:   "smartbin-worker",
		Short: "Run the smart bin worker",
		Run:   cmdRunRun,
	}
	mainOptions struct {
		configFile string
	}
)

func init() {
	f := cmdMain.PersistentFlags()
	f.StringVarP(&mainOptions.configFile, "config", "c", "", "Path of the configuration file")
	config.RegisterFlags(f)
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		Exitf("%v\n", err)
	}
}

// loadConfig loads the configuration using the flags of the given command.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.Load(cmd.Flags(), mainOptions.configFile)
	if err != nil {
		Exitf("Failed to load configuration: %v\n", err)
	}
	return cfg
}

// newBridge creates the configured hardware bridge.
func newBridge(cfg config.Config, log zerolog.Logger) bridge.API {
	br, err := bridge.New(cfg.Bridge, log, bridge.Options{
		StatusLEDPin: cfg.LEDs.StatusPin,
		ErrorLEDPin:  cfg.LEDs.ErrorPin,
	})
	if err != nil {
		Exitf("Failed to initialize bridge: %v\n", err)
	}
	return br
}

// newCommandContext returns a context that is canceled on SIGINT/SIGTERM.
func newCommandContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		log.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()
	return ctx, cancel
}

// newToolLogger creates a logger for the one-shot commands.
func newToolLogger(cfg config.Config) zerolog.Logger {
	return logging.NewLogger(cfg.LogLevel)
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
