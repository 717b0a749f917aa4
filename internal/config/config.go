package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cardscan/internal/logger"
)

// DefaultOCRSpaceKey is OCR.space's public demo key. It works without signup but is
// heavily rate-limited.
const DefaultOCRSpaceKey = "helloworld"

// OCR and AI backend names.
const (
	OCRProviderSpace      = "ocrspace"
	OCRProviderVision     = "vision"
	OCRProviderDocumentAI = "documentai"

	AIProviderOpenAI = "openai"
	AIProviderGemini = "gemini"
)

type Config struct {
	// OCR Configuration
	OCRProvider    string
	OCRSpaceAPIKey string
	OCRSpaceURL    string

	// Google Cloud Configuration (vision, documentai)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Generative model Configuration
	AIProvider    string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string
	AITemperature float32

	// Google Sheets export
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// HTTP server
	HTTPAddr           string
	HTTPRequestTimeout time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCRProvider:           strings.ToLower(getEnv("OCR_PROVIDER", OCRProviderSpace)),
		OCRSpaceAPIKey:        getEnv("OCR_SPACE_API_KEY", ""),
		OCRSpaceURL:           getEnv("OCR_SPACE_URL", "https://api.ocr.space/parse/image"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		AIProvider:            strings.ToLower(getEnv("AI_PROVIDER", AIProviderGemini)),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AITemperature:         parseFloatEnv("AI_TEMPERATURE", 0.1),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "ID_Cards"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		HTTPRequestTimeout:    parseDurationEnv("HTTP_REQUEST_TIMEOUT", 2*time.Minute),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCRProvider {
	case OCRProviderSpace:
		if c.OCRSpaceURL == "" {
			return fmt.Errorf("OCR_SPACE_URL must not be empty")
		}
	case OCRProviderVision:
	case OCRProviderDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai OCR provider")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai OCR provider")
		}
	default:
		return fmt.Errorf("unknown OCR_PROVIDER %q (want %s, %s or %s)",
			c.OCRProvider, OCRProviderSpace, OCRProviderVision, OCRProviderDocumentAI)
	}

	switch c.AIProvider {
	case AIProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER=openai")
		}
	case AIProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q (want %s or %s)", c.AIProvider, AIProviderOpenAI, AIProviderGemini)
	}

	if c.AITemperature < 0 || c.AITemperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2, got %v", c.AITemperature)
	}
	return nil
}

// UsesDefaultOCRKey reports whether OCR.space is called with the public,
// rate-limited demo key.
func (c *Config) UsesDefaultOCRKey() bool {
	return c.OCRSpaceAPIKey == "" || c.OCRSpaceAPIKey == DefaultOCRSpaceKey
}

// OCRSpaceKey returns the key sent to OCR.space, falling back to the demo key.
func (c *Config) OCRSpaceKey() string {
	if c.OCRSpaceAPIKey == "" {
		return DefaultOCRSpaceKey
	}
	return c.OCRSpaceAPIKey
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
