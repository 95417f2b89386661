package app

import (
	"fmt"
	"time"

	"github.com/Brownie44l1/inference-api/internal/config"
	"github.com/Brownie44l1/inference-api/internal/fetcher"
	"github.com/Brownie44l1/inference-api/internal/logger"
	"github.com/Brownie44l1/inference-api/internal/metrics"
	"github.com/Brownie44l1/inference-api/internal/model"
	"github.com/Brownie44l1/inference-api/internal/pipeline"
	"github.com/Brownie44l1/inference-api/internal/preprocess"
	"github.com/rs/zerolog/log"
)

// App is everything built at cold start.
type App struct {
	Config   *config.Configs
	Pipeline *pipeline.Pipeline
	session  *model.Session
}

// Init loads configuration, the model and its labels. Any error means the
// process must not serve requests.
func Init() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.AppName, cfg.AppLogLevel); err != nil {
		return nil, err
	}
	if cfg.AppMetricsEnabled {
		if err := metrics.Init(cfg.TelegrafAddress, cfg.AppName, cfg.AppEnv, cfg.AppMetricSamplingRate); err != nil {
			return nil, err
		}
	}

	metadata, err := model.LoadMetadata(cfg.ModelMetadataPath)
	if err != nil {
		return nil, err
	}
	inputShape, labels, err := contract(cfg, metadata)
	if err != nil {
		return nil, err
	}

	log.Info().Str("model", cfg.ModelPath).Str("task", cfg.ModelTask).Msg("Loading model")
	session, err := model.NewSession(cfg.ModelPath, cfg.OnnxRuntimeLibraryPath, *metadata)
	if err != nil {
		return nil, err
	}

	p, err := Build(cfg, session, *metadata, inputShape, labels)
	if err != nil {
		session.Close()
		return nil, err
	}

	log.Info().Int("labels", len(labels)).Msg("Model loaded")
	return &App{Config: cfg, Pipeline: p, session: session}, nil
}

// Build wires a pipeline around an already loaded predictor.
func Build(cfg *config.Configs, predictor model.Predictor, metadata model.Metadata, inputShape []int64, labels []string) (*pipeline.Pipeline, error) {
	rt, err := model.NewRuntime(predictor, metadata, inputShape, labels)
	if err != nil {
		return nil, err
	}

	var f fetcher.Fetcher
	if cfg.ModelTask == config.TaskClassification {
		f = fetcher.NewHTTPFetcher(time.Duration(cfg.FetchTimeoutMs)*time.Millisecond, cfg.FetchMaxBytes)
	}
	return pipeline.New(cfg.ModelTask, f, rt, pipeline.WithMaxImagePixels(cfg.ImageMaxPixels))
}

// contract returns the input shape and label table the task requires.
func contract(cfg *config.Configs, metadata *model.Metadata) ([]int64, []string, error) {
	if cfg.ModelTask == config.TaskRegression {
		return preprocess.TabularShape, nil, nil
	}

	if cfg.ModelLabelsPath == "" {
		if len(metadata.Classes) == 0 {
			return nil, nil, fmt.Errorf("%w: MODEL_LABELS_PATH is empty and metadata has no classes", model.ErrConfig)
		}
		return preprocess.ImageShape, metadata.Classes, nil
	}
	labels, err := model.LoadLabels(cfg.ModelLabelsPath)
	if err != nil {
		return nil, nil, err
	}
	return preprocess.ImageShape, labels, nil
}

func (a *App) Close() {
	if a.session != nil {
		a.session.Close()
	}
	metrics.Close()
}
