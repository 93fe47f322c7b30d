package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/prguard/internal/config"
	"github.com/spf13/cobra"
)

var flagProject bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage prguard configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Config file already exists at %s\n", path)
			return nil
		}

		if err := config.SaveFile(path, config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Keys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if isSecretKey(key) {
			return fmt.Errorf("%s is not stored in config files; set it in the environment", key)
		}

		path, err := configFilePath()
		if err != nil {
			return err
		}
		cfg := config.Default()
		if _, err := config.LoadFile(path, &cfg); err != nil {
			return err
		}

		if err := config.SetField(&cfg, key, value); err != nil {
			return err
		}

		if err := config.SaveFile(path, cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, value)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			return err
		}
		cfg.Safety.APIKey = mask(cfg.Safety.APIKey)
		cfg.GitHub.Token = mask(cfg.GitHub.Token)

		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, string(data))
		return nil
	},
}

// configFilePath is the file init and set write to: the project file with
// --project, the user file otherwise.
func configFilePath() (string, error) {
	if flagProject {
		return config.ProjectFile, nil
	}
	return config.ConfigPath()
}

func isSecretKey(key string) bool {
	return key == "safety.api_key" || key == "github.token"
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

func init() {
	configCmd.PersistentFlags().BoolVar(&flagProject, "project", false, "Use ./"+config.ProjectFile+" instead of the user config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
