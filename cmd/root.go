// Package cmd is the webgen command line.
//
// Configuration is read, from highest to lowest priority, from flags, the
// WEBGEN_<SECTION>_<OPTION> environment variables and the .webgen.yml file
// (or the file named by --config or WEBGEN_CONFIG_FILE).
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "webgen",
	Short: "Build websites from templates in a sandboxed live editor",
	Long: `webgen composes website templates into standalone documents, previews
them at desktop, tablet and mobile widths, and edits them in place through a
sandboxed live view whose every change is written back to clean HTML.

Quick Start:
  webgen serve                    Start the gallery and editor server
  webgen template list            List catalog templates
  webgen template convert a.html  Turn a page into a template
  webgen preview -t cafe          Screenshot a template per device
  webgen edit <website-id>        Apply scripted edits to a website`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .webgen.yml, can also use WEBGEN_CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("WEBGEN_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".webgen")
	}

	viper.SetEnvPrefix("WEBGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
