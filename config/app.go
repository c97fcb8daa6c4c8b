package config

import (
	"os"
	"strconv"
	"time"
)

// App holds process-wide settings resolved once at startup and passed by
// reference into the pipeline. Prices are USD.
type App struct {
	WorkspaceRoot string

	// Billing tariffs per processing minute.
	PriceDefault   float64
	PriceVoiceOnly float64

	// Provider pricing used for the per-run cost log.
	SttPricePerMinute    float64
	LlmInputPricePer1K   float64
	LlmOutputPricePer1K  float64

	// Vertex / GCP
	GoogleProjectID string
	GoogleLocation  string
	LlmModel        string

	// Worker pool
	NumWorkers  int
	RunStream   string
	RunGroup    string
	ConsumerTag string

	// Timeouts
	CallTimeout time.Duration // one STT/LLM/storage call
	RunBudget   time.Duration // whole run, also the lease TTL
	SettleDelay time.Duration // wait for late uploads before listing chunks
}

func LoadApp() *App {
	return &App{
		WorkspaceRoot: envStr("WORKSPACE_ROOT", "temp"),

		PriceDefault:   envFloat("PRICE_DEFAULT", 0.085),
		PriceVoiceOnly: envFloat("PRICE_VOICE_ONLY", 0.050),

		SttPricePerMinute:   envFloat("STT_PRICE_PER_MINUTE", 0.006),
		LlmInputPricePer1K:  envFloat("LLM_INPUT_PRICE_PER_1K", 0.0025),
		LlmOutputPricePer1K: envFloat("LLM_OUTPUT_PRICE_PER_1K", 0.01),

		GoogleProjectID: os.Getenv("GOOGLE_PROJECT_ID"),
		GoogleLocation:  envStr("GOOGLE_LOCATION", "us-central1"),
		LlmModel:        envStr("LLM_MODEL", "gemini-1.5-flash"),

		NumWorkers:  envInt("NUM_WORKERS", 3),
		RunStream:   envStr("RUN_STREAM", "process:stream"),
		RunGroup:    envStr("RUN_GROUP", "process-workers"),
		ConsumerTag: envStr("CONSUMER_TAG", "c"),

		CallTimeout: envDuration("CALL_TIMEOUT", 2*time.Minute),
		RunBudget:   envDuration("RUN_BUDGET", 30*time.Minute),
		SettleDelay: envDuration("SETTLE_DELAY", 0),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
