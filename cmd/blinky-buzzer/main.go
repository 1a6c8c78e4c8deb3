// Command blinky-buzzer drives an LED and a buzzer through a shared duty cycle,
// controlled from the command line, an interactive shell, MQTT and HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/blinky-buzzer/internal/config"
	"github.com/sweeney/blinky-buzzer/internal/logging"
)

var (
	cfgPath   string
	verbosity int
	logLevel  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "blinky-buzzer",
		Short:         "Non-blocking LED and buzzer indicator",
		Long:          "Drives an LED and a buzzer through a shared on/off duty cycle on Raspberry Pi GPIO.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "config file path")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase logging (-v debug, -vv trace)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error|warn|info|debug|trace), overrides the config file")

	cmd.AddCommand(
		newRunCmd(),
		newPatternCmd("blink", "Blink the LED"),
		newPatternCmd("beep", "Beep the buzzer"),
		newPatternCmd("buzz", "Blink and beep together"),
		newShellCmd(),
		newConfigCmd(),
	)
	return cmd
}

// loadConfig reads the config file and applies the logging flags.
// -v wins over --log-level, which wins over the file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if err := applyLogLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyLogLevel(fromFile string) error {
	if verbosity > 0 {
		logging.SetVerbosity(verbosity)
		return nil
	}
	name := fromFile
	if logLevel != "" {
		name = logLevel
	}
	l, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	logging.SetLevel(l)
	return nil
}
