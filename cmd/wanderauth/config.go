package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Inspect the CLI configuration",
	Annotations: map[string]string{"engine": "none"},
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write the default configuration as YAML",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"engine": "none"},
	RunE: func(_ *cobra.Command, args []string) error {
		out, err := yaml.Marshal(defaultSettings())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(args[0], out, 0o600); err != nil {
			return err
		}
		printSuccess("Wrote %s", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration after the file and environment are applied",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"engine": "none"},
	RunE: func(_ *cobra.Command, _ []string) error {
		s, err := loadSettings(cfgFile)
		if err != nil {
			return err
		}
		if s.SMTP.Password != "" {
			s.SMTP.Password = "********"
		}
		out, err := yaml.Marshal(s)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}
