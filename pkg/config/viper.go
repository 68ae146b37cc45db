// Package config initializes the process-wide Viper instance from a config
// file, a .env file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	crawlcfg "github.com/JakeFAU/samehost-crawler/internal/config"
	"github.com/JakeFAU/samehost-crawler/internal/logging"
)

// InitConfig prepares the global Viper instance. cfgFile, when non-empty,
// names the config file; otherwise "config.*" is searched for in the usual
// places. A missing config file or .env file is not an error; an unreadable
// or malformed one is.
func InitConfig(cfgFile string) error {
	return initConfig(viper.GetViper(), cfgFile, ".env")
}

func initConfig(v *viper.Viper, cfgFile, dotenv string) error {
	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(dotenv); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenv, err)
		}
	} else {
		logging.L.Debug("Loaded environment file", zap.String("path", dotenv))
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sitecrawler/")
		v.AddConfigPath("$HOME/.sitecrawler")
	}

	crawlcfg.SetDefaults(v)
	if err := crawlcfg.BindEnv(v); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	logging.L.Info("Using config file", zap.String("path", v.ConfigFileUsed()))
	return nil
}
