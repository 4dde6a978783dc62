package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Mineru98/crossmodal-retrieval-go/rank"
)

// EnvPrefix prefixes every environment override, e.g. CMR_EVALUATION_WORKERS
const EnvPrefix = "CMR"

// Config is the full evaluation configuration. It is a plain value and
// is not modified after Load.
type Config struct {
	Model      ModelConfig      `mapstructure:"modelparams"`
	Hyper      HyperConfig      `mapstructure:"hyperparams"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Encoder    EncoderConfig    `mapstructure:"encoder"`
	Log        LogConfig        `mapstructure:"log"`
}

// ModelConfig describes the trained sentence encoder
type ModelConfig struct {
	SentenceEncoder string `mapstructure:"sentence_encoder"`
	Metric          string `mapstructure:"metric"`
	NLayers         int    `mapstructure:"n_layers"`
	DModel          int    `mapstructure:"d_model"`
}

// HyperConfig holds data loading parameters
type HyperConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// EvaluationConfig controls scoring and reporting
type EvaluationConfig struct {
	BatchSize      int   `mapstructure:"batch_size"`
	Ks             []int `mapstructure:"ks"`
	Workers        int   `mapstructure:"workers"`
	PairedCaptions bool  `mapstructure:"paired_captions"`
	TopN           int   `mapstructure:"top_n"`
}

// PathsConfig lists the files and databases a command may open
type PathsConfig struct {
	EncoderModel   string `mapstructure:"encoder_model"`
	Tokenizer      string `mapstructure:"tokenizer"`
	OnnxRuntimeLib string `mapstructure:"onnxruntime_lib"`
	Img2Vec        string `mapstructure:"img2vec"`
	ValJSON        string `mapstructure:"val_json"`
	SnapshotDB     string `mapstructure:"snapshot_db"`
}

// EncoderConfig names the encoder graph tensors and tokenizer limits
type EncoderConfig struct {
	TokenInput     string `mapstructure:"token_input"`
	PositionInput  string `mapstructure:"position_input"`
	MeanOutput     string `mapstructure:"mean_output"`
	VarianceOutput string `mapstructure:"variance_output"`
	MaxLength      int    `mapstructure:"max_length"`
	AddSpecial     bool   `mapstructure:"add_special_tokens"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"modelparams.sentence_encoder": "",
	"modelparams.metric":           "mahalanobis",
	"modelparams.n_layers":         0,
	"modelparams.d_model":          0,
	"hyperparams.batch_size":       128,
	"evaluation.batch_size":        10,
	"evaluation.ks":                []int{5, 10, 20},
	"evaluation.workers":           1,
	"evaluation.paired_captions":   false,
	"evaluation.top_n":             9,
	"paths.encoder_model":          "",
	"paths.tokenizer":              "",
	"paths.onnxruntime_lib":        "",
	"paths.img2vec":                "",
	"paths.val_json":               "",
	"paths.snapshot_db":            "",
	"encoder.token_input":          "src_seq",
	"encoder.position_input":       "src_pos",
	"encoder.mean_output":          "mean",
	"encoder.variance_output":      "variance",
	"encoder.max_length":           64,
	"encoder.add_special_tokens":   true,
	"log.level":                    "info",
	"log.format":                   "text",
}

// Load reads the config file at path (yaml or ini, by extension) and
// applies CMR_* environment overrides. An empty path uses defaults and
// the environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. Paths are checked by the commands that
// need them.
func (c Config) Validate() error {
	if _, err := rank.ParseMetric(c.Model.Metric); err != nil {
		return fmt.Errorf("modelparams.metric: %w", err)
	}
	if c.Hyper.BatchSize <= 0 {
		return fmt.Errorf("hyperparams.batch_size must be positive, got %d", c.Hyper.BatchSize)
	}
	if c.Evaluation.BatchSize <= 0 {
		return fmt.Errorf("evaluation.batch_size must be positive, got %d", c.Evaluation.BatchSize)
	}
	if len(c.Evaluation.Ks) == 0 {
		return fmt.Errorf("evaluation.ks must not be empty")
	}
	seen := make(map[int]bool, len(c.Evaluation.Ks))
	for _, k := range c.Evaluation.Ks {
		if k <= 0 {
			return fmt.Errorf("evaluation.ks must be positive, got %d", k)
		}
		if seen[k] {
			return fmt.Errorf("evaluation.ks lists %d more than once", k)
		}
		seen[k] = true
	}
	if c.Evaluation.Workers <= 0 {
		return fmt.Errorf("evaluation.workers must be positive, got %d", c.Evaluation.Workers)
	}
	if c.Evaluation.TopN <= 0 {
		return fmt.Errorf("evaluation.top_n must be positive, got %d", c.Evaluation.TopN)
	}
	if c.Encoder.MaxLength <= 0 {
		return fmt.Errorf("encoder.max_length must be positive, got %d", c.Encoder.MaxLength)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Metric returns the parsed modelparams.metric
func (c Config) Metric() rank.Metric {
	m, err := rank.ParseMetric(c.Model.Metric)
	if err != nil {
		return rank.Mahalanobis
	}
	return m
}

// Require reports an error naming the first empty path among keys
func (p PathsConfig) Require(keys ...string) error {
	values := map[string]string{
		"encoder_model":   p.EncoderModel,
		"tokenizer":       p.Tokenizer,
		"onnxruntime_lib": p.OnnxRuntimeLib,
		"img2vec":         p.Img2Vec,
		"val_json":        p.ValJSON,
		"snapshot_db":     p.SnapshotDB,
	}
	for _, key := range keys {
		value, ok := values[key]
		if !ok {
			return fmt.Errorf("unknown path key %q", key)
		}
		if value == "" {
			return fmt.Errorf("paths.%s is required", key)
		}
	}
	return nil
}
