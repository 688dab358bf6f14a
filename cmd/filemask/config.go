package main

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/absfs/filemask"
)

// settings are the values the command takes from its config file and
// environment. Flags override them.
type settings struct {
	HiddenDir  string `mapstructure:"hidden_dir"`
	ChunkSize  int    `mapstructure:"chunk_size"`
	Verbose    bool   `mapstructure:"verbose"`
	Password   string `mapstructure:"password"`
	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
	LogMaxSize int    `mapstructure:"log_max_size"`
}

// loadSettings reads path (YAML or JSON, inferred from the extension) if it
// is not empty, then FILEMASK_* environment variables.
func loadSettings(path string) (*settings, error) {
	v := viper.New()
	v.SetDefault("hidden_dir", filemask.DefaultHiddenDirName)
	v.SetDefault("chunk_size", filemask.DefaultChunkSize)
	v.SetDefault("verbose", false)
	v.SetDefault("password", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size", defaultLogMaxSize)

	v.SetEnvPrefix("FILEMASK")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			v.SetConfigType("yaml")
		case ".json":
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	s := &settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return s, nil
}

func (s *settings) maskerConfig() *filemask.Config {
	return &filemask.Config{
		HiddenDirName: s.HiddenDir,
		ChunkSize:     s.ChunkSize,
	}
}
