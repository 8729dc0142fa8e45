package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and save the file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setValue(cfg, args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := configFile()
	if err != nil {
		return err
	}
	if err := config.SaveFile(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Printf("%s set to: %s\n", args[0], args[1])
	return nil
}

func setValue(cfg *config.Config, key, value string) error {
	switch key {
	case "log_level":
		cfg.LogLevel = value
	case "api.base_url":
		cfg.API.BaseURL = value
	case "api.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.API.Timeout = d
	case "store.backend":
		cfg.Store.Backend = value
	case "store.path":
		cfg.Store.Path = value
	case "store.redis_addr":
		cfg.Store.RedisAddr = value
	case "sync.concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Sync.Concurrency = n
	case "signature.format":
		cfg.Signature.Format = value
	case "agenda.calendar":
		cfg.Agenda.Calendar = value
	case "device.latitude", "device.longitude":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		if key == "device.latitude" {
			cfg.Device.Latitude = &f
		} else {
			cfg.Device.Longitude = &f
		}
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	return nil
}
