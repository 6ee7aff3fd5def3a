// Command sikulibridge starts a Sikuli engine and drives it from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cboone/sikulibridge"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "sikulibridge",
		Short:         "Run and drive a Sikuli engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if lvl, err := log.ParseLevel(viper.GetString("log")); err == nil {
				log.SetLevel(lvl)
			} else {
				log.SetLevel(log.InfoLevel)
				log.WithError(err).Error("Could not parse log level")
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path")
	flags.StringVar(&logLevel, "log", "info", "Set the log level. Valid values: panic, fatal, error, warn, info, debug, trace")
	addEngineFlags(flags)
	cobra.CheckErr(viper.BindPFlags(flags))

	cobra.OnInitialize(initConfig)

	root.AddCommand(newStartCmd(), newKeywordsCmd(), newRunCmd(), newCatalogCmd())
	return root
}

// addEngineFlags defines the flags shared by every command that launches
// or connects to an engine.
func addEngineFlags(flags *pflag.FlagSet) {
	flags.String("lib-dir", "", "directory holding the engine artifact (default: lib next to the executable)")
	flags.String("pattern", "*.jar", "glob matching the engine artifact in the library directory")
	flags.String("java", "", "java binary used for .jar artifacts (default: $PATH lookup)")
	flags.Duration("timeout", 3*time.Second, "how long to wait for the engine to answer")
	flags.String("output-dir", "", "directory for engine output files (default: working directory)")
}

// initConfig reads in the config file and SIKULI_* environment variables.
func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("SIKULI")
	viper.AutomaticEnv()

	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		log.WithError(err).WithField("config", cfgFile).Fatal("Could not read config file")
	}
	log.Infof("Using config file: %v", viper.ConfigFileUsed())
}

// bridgeOptions turns the shared configuration into bridge options.
func bridgeOptions(mode sikulibridge.Mode, extra ...sikulibridge.Option) []sikulibridge.Option {
	opts := []sikulibridge.Option{
		sikulibridge.WithMode(mode),
		sikulibridge.WithLibDir(viper.GetString("lib-dir")),
		sikulibridge.WithArtifactPattern(viper.GetString("pattern")),
		sikulibridge.WithJavaPath(viper.GetString("java")),
		sikulibridge.WithTimeout(viper.GetDuration("timeout")),
		sikulibridge.WithOutputDir(viper.GetString("output-dir")),
		sikulibridge.WithLogger(log.StandardLogger()),
	}
	return append(opts, extra...)
}

// openBridge connects to the engine on port when it is set, and starts a
// new engine otherwise.
func openBridge(ctx context.Context, port int, extra ...sikulibridge.Option) (*sikulibridge.Bridge, error) {
	if port > 0 {
		extra = append(extra, sikulibridge.WithPort(port))
		return sikulibridge.New(ctx, bridgeOptions(sikulibridge.ModePython, extra...)...)
	}

	b, err := sikulibridge.New(ctx, bridgeOptions(sikulibridge.ModeNew, extra...)...)
	if err != nil {
		return nil, err
	}
	if err := b.StartSikuliProcess(ctx, 0); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}
