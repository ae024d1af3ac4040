package config

import (
	"errors"
	"fmt"
	"strings"

	internal "github.com/ctrellis/textclass/textclass"

	"github.com/spf13/viper"
)

// ErrInvalidConfig indicates a configuration value outside its allowed range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Model    ModelConfig    `mapstructure:"model"`
	Train    TrainConfig    `mapstructure:"train"`
	Data     DataConfig     `mapstructure:"data"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
}

// ModelConfig stores pretrained-encoder related configurations.
type ModelConfig struct {
	ID             string `mapstructure:"id"`
	File           string `mapstructure:"file"`
	MaxSeqLen      int    `mapstructure:"maxSeqLen"`
	Pooling        string `mapstructure:"pooling"`
	FineTuneLayers int    `mapstructure:"fineTuneLayers"`
	CacheDir       string `mapstructure:"cacheDir"`
}

// TrainConfig stores training loop parameters.
type TrainConfig struct {
	Epochs        int     `mapstructure:"epochs"`
	BatchSize     int     `mapstructure:"batchSize"`
	TrainFraction float64 `mapstructure:"trainFraction"`
	Seed          int64   `mapstructure:"seed"`
	LearningRate  float64 `mapstructure:"learningRate"`
}

// DataConfig stores dataset column names.
type DataConfig struct {
	TextColumn  string `mapstructure:"textColumn"`
	LabelColumn string `mapstructure:"labelColumn"`
}

// ArtifactConfig stores output locations.
type ArtifactConfig struct {
	Dir        string `mapstructure:"dir"`
	LedgerPath string `mapstructure:"ledgerPath"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("model.id", internal.DefaultModelID)
	viper.SetDefault("model.file", internal.DefaultModelFile)
	viper.SetDefault("model.maxSeqLen", internal.DefaultMaxSeqLen)
	viper.SetDefault("model.pooling", "mean")
	viper.SetDefault("model.fineTuneLayers", 3)
	viper.SetDefault("model.cacheDir", internal.DefaultCacheDir)
	viper.SetDefault("train.epochs", 1)
	viper.SetDefault("train.batchSize", 64)
	viper.SetDefault("train.trainFraction", 0.7)
	viper.SetDefault("train.seed", 42)
	viper.SetDefault("train.learningRate", 1e-5)
	viper.SetDefault("data.textColumn", "text")
	viper.SetDefault("data.labelColumn", "labels")
	viper.SetDefault("artifact.dir", internal.DefaultArtifactDir)
	viper.SetDefault("artifact.ledgerPath", internal.DefaultLedgerPath)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. model.maxSeqLen becomes MODEL_MAXSEQLEN

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := AppConfig.Validate(); err != nil {
		return nil, err
	}

	return &AppConfig, nil
}

// Validate rejects parameter values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Model.Pooling {
	case "first", "mean":
	default:
		return fmt.Errorf("%w: pooling must be either first or mean, but is %q", ErrInvalidConfig, c.Model.Pooling)
	}
	if c.Model.MaxSeqLen < 3 {
		return fmt.Errorf("%w: maxSeqLen %d leaves no room for content tokens", ErrInvalidConfig, c.Model.MaxSeqLen)
	}
	if c.Model.FineTuneLayers < 0 {
		return fmt.Errorf("%w: fineTuneLayers must not be negative", ErrInvalidConfig)
	}
	if c.Train.TrainFraction <= 0 || c.Train.TrainFraction >= 1 {
		return fmt.Errorf("%w: trainFraction must be in (0,1), got %v", ErrInvalidConfig, c.Train.TrainFraction)
	}
	if c.Train.Epochs < 1 || c.Train.BatchSize < 1 {
		return fmt.Errorf("%w: epochs and batchSize must be at least 1", ErrInvalidConfig)
	}
	return nil
}
