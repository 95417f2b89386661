package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

// Metric keys
const (
	RequestCount = "inference_request_count"
	StageLatency = "inference_stage_latency"
)

// Tag keys
const (
	TagEnv     = "env"
	TagService = "service"
	TagTask    = "task"
	TagStage   = "stage"
	TagStatus  = "status"
)

var (
	mu           sync.RWMutex
	client       statsd.ClientInterface = &statsd.NoOpClient{}
	samplingRate = 1.0
)

// Init replaces the no-op client with a statsd client pointing at address.
func Init(address, appName, env string, rate float64) error {
	c, err := statsd.New(address, statsd.WithTags([]string{
		TagAsString(TagEnv, env),
		TagAsString(TagService, appName),
	}))
	if err != nil {
		return fmt.Errorf("statsd client initialization failed: %w", err)
	}
	mu.Lock()
	client = c
	samplingRate = rate
	mu.Unlock()
	log.Info().Msgf("Metrics client initialized with telegraf address - %s, sampling rate - %f", address, rate)
	return nil
}

func Close() {
	mu.RLock()
	defer mu.RUnlock()
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing statsd client")
	}
}

// Timing sends the elapsed time since start.
func Timing(name string, start time.Time, tags []string) {
	mu.RLock()
	defer mu.RUnlock()
	if err := client.Timing(name, time.Since(start), tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// Incr increases metric counter by 1.
func Incr(name string, tags []string) {
	mu.RLock()
	defer mu.RUnlock()
	if err := client.Incr(name, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd incr")
	}
}

func TagAsString(key, value string) string {
	return key + ":" + value
}

func BuildTags(kv ...string) []string {
	tags := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		tags = append(tags, TagAsString(kv[i], kv[i+1]))
	}
	return tags
}
