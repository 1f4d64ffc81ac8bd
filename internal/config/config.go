package config

import (
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// ErrMissingSetting marks fatal configuration failures: a required credential
// or setting absent at startup. Runs abort before any work begins.
var ErrMissingSetting = eris.New("missing required setting")

// Config holds runtime configuration, read once from the environment at
// process start.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LogLevel      string
	SentryDSN     string
	Environment   string

	LLMAPIKey   string
	LLMEndpoint string
	LLMModel    string

	DeepgramAPIKey string

	StorageEndpoint string
	StorageBucket   string
	StorageToken    string

	CorpusAPIURL string
	CorpusAPIKey string

	SummaryTokenBudget int
	SummaryMaxRounds   int
}

const (
	defaultRedisAddr       = "localhost:6379"
	defaultLogLevel        = "info"
	defaultEnvironment     = "development"
	defaultLLMModel        = "gpt-4o-mini"
	defaultStorageEndpoint = "https://storage.googleapis.com"
	defaultTokenBudget     = 4000
	defaultMaxRounds       = 10
)

// Load reads configuration values from environment variables, applying
// defaults where necessary. Per-command credential requirements are checked
// separately via Validate.
func Load() (*Config, error) {
	cfg := &Config{
		RedisAddr:       getEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		LogLevel:        getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		Environment:     getEnv("ENV", defaultEnvironment),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMEndpoint:     os.Getenv("LLM_ENDPOINT"),
		LLMModel:        getEnv("LLM_MODEL", defaultLLMModel),
		DeepgramAPIKey:  os.Getenv("DEEPGRAM_API_KEY"),
		StorageEndpoint: getEnv("STORAGE_ENDPOINT", defaultStorageEndpoint),
		StorageBucket:   os.Getenv("STORAGE_BUCKET"),
		StorageToken:    os.Getenv("STORAGE_TOKEN"),
		CorpusAPIURL:    os.Getenv("CORPUS_API_URL"),
		CorpusAPIKey:    os.Getenv("CORPUS_API_KEY"),
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisDB = redisDB

	budget, err := intEnv("SUMMARY_TOKEN_BUDGET", defaultTokenBudget)
	if err != nil {
		return nil, err
	}
	cfg.SummaryTokenBudget = budget

	maxRounds, err := intEnv("SUMMARY_MAX_ROUNDS", defaultMaxRounds)
	if err != nil {
		return nil, err
	}
	cfg.SummaryMaxRounds = maxRounds

	return cfg, nil
}

// Requirement names a group of settings a command depends on.
type Requirement int

const (
	// NeedLLM requires the completion service credentials.
	NeedLLM Requirement = iota
	// NeedTranscription requires the transcription service credentials.
	NeedTranscription
	// NeedStorage requires the blob storage settings.
	NeedStorage
	// NeedCorpus requires the index service settings.
	NeedCorpus
)

// Validate checks that the settings each listed requirement depends on are
// present, so a run fails before any work rather than mid-batch. Commands
// that only read the catalog validate nothing beyond the store address.
func (c *Config) Validate(needs ...Requirement) error {
	for _, need := range needs {
		switch need {
		case NeedLLM:
			if c.LLMAPIKey == "" {
				return eris.Wrap(ErrMissingSetting, "LLM_API_KEY")
			}
		case NeedTranscription:
			if c.DeepgramAPIKey == "" {
				return eris.Wrap(ErrMissingSetting, "DEEPGRAM_API_KEY")
			}
		case NeedStorage:
			if c.StorageBucket == "" {
				return eris.Wrap(ErrMissingSetting, "STORAGE_BUCKET")
			}
		case NeedCorpus:
			if c.CorpusAPIURL == "" {
				return eris.Wrap(ErrMissingSetting, "CORPUS_API_URL")
			}
			if c.CorpusAPIKey == "" {
				return eris.Wrap(ErrMissingSetting, "CORPUS_API_KEY")
			}
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}
