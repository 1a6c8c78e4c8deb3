package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/blinky-buzzer/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the config file",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one key, or every key when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printConfig(os.Stdout, cfg, args)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one key and save the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			v, _ := cfg.Get(args[0])
			fmt.Printf("saved %s: %s=%s\n", cfgPath, args[0], v)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg config.Config, keys []string) error {
	if len(keys) == 1 {
		v, err := cfg.Get(keys[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, v)
		return nil
	}
	for _, k := range config.Keys() {
		v, _ := cfg.Get(k)
		fmt.Fprintf(w, "%s: %s\n", k, v)
	}
	return nil
}
