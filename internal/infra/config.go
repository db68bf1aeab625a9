package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendGemini    = "gemini"
	BackendSynthetic = "synthetic"

	TextProviderGemini = "gemini"
	TextProviderOpenAI = "openai"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	JWTSecret          string
	StoragePath        string
	GeoIPDBPath        string
	DefaultLocale      string
	CORSAllowedOrigins []string
	GenerationBackend  string
	TextProvider       string
	GeminiAPIKey       string
	GeminiTextModel    string
	GeminiImageModel   string
	GeminiVideoModel   string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	Pipeline           PipelineConfig
}

// PipelineConfig holds the generation pipeline tunables. Values come from the
// environment and may be overridden by the YAML file named in
// PIPELINE_CONFIG_FILE.
type PipelineConfig struct {
	ConceptCount            int           `yaml:"concept_count"`
	MaxConcurrentCandidates int           `yaml:"max_concurrent_candidates"`
	ImagePollInterval       time.Duration `yaml:"image_poll_interval"`
	ImagePollAttempts       int           `yaml:"image_poll_attempts"`
	VideoPollInterval       time.Duration `yaml:"video_poll_interval"`
	VideoPollAttempts       int           `yaml:"video_poll_attempts"`
	SceneDelay              time.Duration `yaml:"scene_delay"`
	VideoResolution         string        `yaml:"video_resolution"`
	PlaceholderVideoURL     string        `yaml:"placeholder_video_url"`
	FetchMaxTries           int           `yaml:"fetch_max_tries"`
	ConceptPrice            int64         `yaml:"concept_price"`
	VideoScenePrice         int64         `yaml:"video_scene_price"`
}

// MaxVideoScenes is the scene count of the longest duration class.
const MaxVideoScenes = 4

// responseHeadroom covers the final download and response write after the
// last scene completes.
const responseHeadroom = 2 * time.Minute

// DefaultPlaceholderVideoURL is served when the video backend rate-limits a request.
const DefaultPlaceholderVideoURL = "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerMeltdowns.mp4"

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		StoragePath:        os.Getenv("STORAGE_PATH"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GenerationBackend:  strings.ToLower(getEnv("GENERATION_BACKEND", BackendGemini)),
		TextProvider:       strings.ToLower(getEnv("TEXT_PROVIDER", TextProviderGemini)),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiTextModel:    getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiVideoModel:   getEnv("GEMINI_VIDEO_MODEL", "veo-3.1-generate-preview"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 900)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		Pipeline: PipelineConfig{
			ConceptCount:            getEnvInt("CONCEPT_COUNT", 4),
			MaxConcurrentCandidates: getEnvInt("MAX_CONCURRENT_CANDIDATES", 4),
			ImagePollInterval:       getEnvDuration("IMAGE_POLL_INTERVAL", 2*time.Second),
			ImagePollAttempts:       getEnvInt("IMAGE_POLL_ATTEMPTS", 15),
			VideoPollInterval:       getEnvDuration("VIDEO_POLL_INTERVAL", 5*time.Second),
			VideoPollAttempts:       getEnvInt("VIDEO_POLL_ATTEMPTS", 120),
			SceneDelay:              getEnvDuration("SCENE_DELAY", 2*time.Second),
			VideoResolution:         getEnv("VIDEO_RESOLUTION", "720p"),
			PlaceholderVideoURL:     getEnv("PLACEHOLDER_VIDEO_URL", DefaultPlaceholderVideoURL),
			FetchMaxTries:           getEnvInt("FETCH_MAX_TRIES", 3),
			ConceptPrice:            int64(getEnvInt("CONCEPT_PRICE", 50)),
			VideoScenePrice:         int64(getEnvInt("VIDEO_SCENE_PRICE", 20)),
		},
	}

	if path := strings.TrimSpace(os.Getenv("PIPELINE_CONFIG_FILE")); path != "" {
		if err := cfg.Pipeline.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.GenerationBackend {
	case BackendGemini, BackendSynthetic:
	default:
		return nil, fmt.Errorf("GENERATION_BACKEND %q is not supported", cfg.GenerationBackend)
	}

	switch cfg.TextProvider {
	case TextProviderGemini, TextProviderOpenAI:
	default:
		return nil, fmt.Errorf("TEXT_PROVIDER %q is not supported", cfg.TextProvider)
	}

	if err := cfg.Pipeline.validate(); err != nil {
		return nil, err
	}

	// The server must not cut a response off before the pipeline's own
	// bounds can produce a timeout error.
	if minWrite := cfg.VideoDeadline() + responseHeadroom; cfg.HTTPWriteTimeout < minWrite {
		cfg.HTTPWriteTimeout = minWrite
	}

	return cfg, nil
}

// VideoDeadline bounds a single video request: every scene polled to its
// attempt limit plus inter-scene delays, for the longest duration class,
// with room for the final download.
func (c *Config) VideoDeadline() time.Duration {
	return c.Pipeline.VideoPollBound(MaxVideoScenes) + responseHeadroom
}

// VideoPollBound is the longest the scene chain can wait on the backend
// for a video of the given scene count.
func (p PipelineConfig) VideoPollBound(scenes int) time.Duration {
	if scenes <= 0 {
		return 0
	}
	return time.Duration(scenes*p.VideoPollAttempts)*p.VideoPollInterval +
		time.Duration(scenes-1)*p.SceneDelay
}

// overlayFile replaces fields present in the YAML file; absent keys keep
// their environment values.
func (p *PipelineConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("parse pipeline config: %w", err)
	}
	return nil
}

func (p PipelineConfig) validate() error {
	switch {
	case p.ConceptCount <= 0:
		return fmt.Errorf("concept_count must be positive")
	case p.MaxConcurrentCandidates <= 0:
		return fmt.Errorf("max_concurrent_candidates must be positive")
	case p.ImagePollAttempts <= 0 || p.VideoPollAttempts <= 0:
		return fmt.Errorf("poll attempts must be positive")
	case p.ImagePollInterval <= 0 || p.VideoPollInterval <= 0:
		return fmt.Errorf("poll intervals must be positive")
	case p.SceneDelay < 0:
		return fmt.Errorf("scene_delay must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
