package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
)

type Configs struct {
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppPort               int     `mapstructure:"app_port"`
	AppMetricsEnabled     bool    `mapstructure:"app_metrics_enabled"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	TelegrafAddress       string  `mapstructure:"telegraf_address"`

	ModelTask              string `mapstructure:"model_task"`
	ModelPath              string `mapstructure:"model_path"`
	ModelMetadataPath      string `mapstructure:"model_metadata_path"`
	ModelLabelsPath        string `mapstructure:"model_labels_path"`
	OnnxRuntimeLibraryPath string `mapstructure:"onnx_runtime_library_path"`

	FetchTimeoutMs int   `mapstructure:"fetch_timeout_ms"`
	FetchMaxBytes  int64 `mapstructure:"fetch_max_bytes"`

	ImageMaxPixels   int64 `mapstructure:"image_max_pixels"`
	HTTPMaxBodyBytes int64 `mapstructure:"http_max_body_bytes"`
}

// Load reads the configuration from the environment.
func Load() (*Configs, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	bindEnvVars(v)

	var cfg Configs
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Configs) Validate() error {
	switch c.ModelTask {
	case TaskClassification, TaskRegression:
	default:
		return fmt.Errorf("unknown MODEL_TASK %q", c.ModelTask)
	}
	if c.AppPort <= 0 {
		return fmt.Errorf("invalid APP_PORT %d", c.AppPort)
	}
	if c.FetchMaxBytes <= 0 {
		return fmt.Errorf("invalid FETCH_MAX_BYTES %d", c.FetchMaxBytes)
	}
	if c.ImageMaxPixels <= 0 {
		return fmt.Errorf("invalid IMAGE_MAX_PIXELS %d", c.ImageMaxPixels)
	}
	if c.HTTPMaxBodyBytes <= 0 {
		return fmt.Errorf("invalid HTTP_MAX_BODY_BYTES %d", c.HTTPMaxBodyBytes)
	}
	if c.FetchTimeoutMs < 0 {
		return fmt.Errorf("invalid FETCH_TIMEOUT_MS %d", c.FetchTimeoutMs)
	}
	if c.ModelPath == "" || c.ModelMetadataPath == "" {
		return fmt.Errorf("MODEL_PATH and MODEL_METADATA_PATH are required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "inference-api")
	v.SetDefault("app_env", "local")
	v.SetDefault("app_log_level", "INFO")
	v.SetDefault("app_port", 8080)
	v.SetDefault("app_metrics_enabled", false)
	v.SetDefault("app_metric_sampling_rate", 1.0)
	v.SetDefault("telegraf_address", "localhost:8125")

	v.SetDefault("model_task", TaskClassification)
	v.SetDefault("model_path", "models/model.onnx")
	v.SetDefault("model_metadata_path", "models/model_metadata.json")
	v.SetDefault("model_labels_path", "")
	v.SetDefault("onnx_runtime_library_path", "")

	v.SetDefault("fetch_timeout_ms", 0)
	v.SetDefault("fetch_max_bytes", 20<<20)

	v.SetDefault("image_max_pixels", 40_000_000)
	v.SetDefault("http_max_body_bytes", 10<<20)
}

func bindEnvVars(v *viper.Viper) {
	// App configuration
	v.BindEnv("app_name", "APP_NAME")
	v.BindEnv("app_env", "APP_ENV")
	v.BindEnv("app_log_level", "APP_LOG_LEVEL")
	v.BindEnv("app_port", "APP_PORT", "PORT")
	v.BindEnv("app_metrics_enabled", "APP_METRICS_ENABLED")
	v.BindEnv("app_metric_sampling_rate", "APP_METRIC_SAMPLING_RATE")
	v.BindEnv("telegraf_address", "TELEGRAF_ADDRESS")

	// Model configuration
	v.BindEnv("model_task", "MODEL_TASK")
	v.BindEnv("model_path", "MODEL_PATH")
	v.BindEnv("model_metadata_path", "MODEL_METADATA_PATH")
	v.BindEnv("model_labels_path", "MODEL_LABELS_PATH")
	v.BindEnv("onnx_runtime_library_path", "ONNX_RUNTIME_LIBRARY_PATH")

	// Fetcher configuration
	v.BindEnv("fetch_timeout_ms", "FETCH_TIMEOUT_MS")
	v.BindEnv("fetch_max_bytes", "FETCH_MAX_BYTES")

	// Input limits
	v.BindEnv("image_max_pixels", "IMAGE_MAX_PIXELS")
	v.BindEnv("http_max_body_bytes", "HTTP_MAX_BODY_BYTES")
}
