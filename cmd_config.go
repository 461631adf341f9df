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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cmdConfig = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Run:   cmdConfigRun,
	}
	configOptions struct {
		output string
	}
)

func init() {
	cmdMain.AddCommand(cmdConfig)
	cmdConfig.Flags().StringVarP(&configOptions.output, "output", "o", "", "Write the configuration to this file instead of stdout")
}

func cmdConfigRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if configOptions.output != "" {
		if err := cfg.WriteFile(configOptions.output); err != nil {
			Exitf("%v\n", err)
		}
		fmt.Printf("Configuration written to %s\n", configOptions.output)
		return
	}
	encoded, err := cfg.Marshal()
	if err != nil {
		Exitf("%v\n", err)
	}
	os.Stdout.Write(encoded)
}
