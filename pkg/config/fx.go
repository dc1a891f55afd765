package config

import (
	"os"

	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// Loads the configuration named by SNOWKEEPER_CONFIG (snowkeeper.yaml by
	// default). Projects without a config file get the embedded defaults so
	// that init, help and version keep working.
	func() (*Config, error) {
		path := os.Getenv("SNOWKEEPER_CONFIG")
		if path == "" {
			path = consts.ConfigFile
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			return Defaults(), nil
		}

		return LoadConfigFile(path)
	},
))
