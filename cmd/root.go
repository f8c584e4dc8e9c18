/*
Copyright © 2026 Daniel Osei

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
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vitalguard/vitalguard/utils"
	"github.com/vitalguard/vitalguard/version"
)

var (
	cfgFile string
	config  *viper.Viper

	isDevEnv  bool
	isTestEnv bool

	yellow       = color.New(color.FgYellow).SprintFunc()
	warningLabel = yellow("Warning:")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd = createRootCmd()
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "vitalguard",
		Short: `vitalguard is a vital-signs alert engine.

It ingests telemetry from health-monitoring devices, classifies readings
against clinical thresholds & notifies caregivers - escalating to emergency
contacts when alerts go unacknowledged.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vitalguard.yaml)")
	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isTestEnv, "test", "", false, "run in test mode")

	return cmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config = viper.New()

	if cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		config.AddConfigPath(home)
		config.SetConfigType("yaml")
		config.SetConfigName(".vitalguard")
		cfgFile = filepath.Join(home, ".vitalguard.yaml")
	}

	config.AutomaticEnv() // read in environment variables that match

	if !utils.FileExist(cfgFile) {
		return
	}

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "%v unable to read config file %v: %v\n", warningLabel, cfgFile, err)
	}
}
