package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName    string
	AppVersion string
	APIHost    string
	APIPort    int
	APIPrefix  string

	// Storage selection: YAML/JSON files when false, relational DB when true.
	UseDatabase       bool
	PromptTemplateDir string
	DataDir           string

	DBDriver   string
	DBPath     string
	DBURL      string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr     string
	RedisPort     string
	RedisPassword string

	JWTSecret                string
	AccessTokenExpireMinutes int

	GeminiAPIKey      string
	QwenAPIKey        string
	DeepSeekAPIKey    string
	GeminiModel       string
	QwenModel         string
	DeepSeekModel     string
	DefaultLLM        string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMTimeout        time.Duration
	LLMFallbackPolicy string
	LLMKeyringService string

	MCPHost           string
	MCPPort           int
	MCPAllowedOrigins []string
	MCPSessionBackend string
	MCPSessionTTL     time.Duration
	MCPMaxSessions    int
	MCPPingInterval   time.Duration
	MCPMaxBodyBytes   int

	CORSAllowOrigins []string

	// Log configuration
	LogLevel      string
	LogFilename   string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) RedisFullAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisAddr, c.RedisPort)
}

// RedisEnabled reports whether a Redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func (c *Config) MCPAddr() string {
	return fmt.Sprintf("%s:%d", c.MCPHost, c.MCPPort)
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		// Ignore error if .env file is not found
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return &Config{
		AppName:    getEnv("APP_NAME", "Prompt Management System"),
		AppVersion: getEnv("APP_VERSION", "0.1.0"),
		APIHost:    getEnv("API_HOST", "0.0.0.0"),
		APIPort:    getEnvAsInt("API_PORT", 8010),
		APIPrefix:  getEnv("API_PREFIX", "/api/v1"),

		UseDatabase:       getEnvAsBool("USE_DATABASE", false),
		PromptTemplateDir: getEnv("PROMPT_TEMPLATE_DIR", "prompt-template"),
		DataDir:           getEnv("DATA_DIR", "data"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "data/prompts.db"),
		DBURL:      os.Getenv("DB_URL"),
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisAddr:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:                getEnv("JWT_SECRET", "a_very_secret_key_that_should_be_changed_and_be_at_least_32_bytes_long"),
		AccessTokenExpireMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		QwenAPIKey:        os.Getenv("QWEN_API_KEY"),
		DeepSeekAPIKey:    os.Getenv("DEEPSEEK_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-pro"),
		QwenModel:         getEnv("QWEN_MODEL", "qwen-turbo"),
		DeepSeekModel:     getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		DefaultLLM:        getEnv("DEFAULT_LLM", "gemini"),
		LLMTemperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 2000),
		LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		LLMFallbackPolicy: getEnv("LLM_FALLBACK_POLICY", "sequential"),
		LLMKeyringService: os.Getenv("LLM_KEYRING_SERVICE"),

		MCPHost: getEnv("MCP_HOST", "127.0.0.1"),
		MCPPort: getEnvAsInt("MCP_PORT", 8011),
		MCPAllowedOrigins: getEnvAsSlice("MCP_ALLOWED_ORIGINS", []string{
			"http://localhost",
			"http://127.0.0.1",
			"https://localhost",
			"https://127.0.0.1",
			"app://",
		}),
		MCPSessionBackend: getEnv("MCP_SESSION_BACKEND", "memory"),
		MCPSessionTTL:     getEnvAsDuration("MCP_SESSION_TTL", time.Hour),
		MCPMaxSessions:    getEnvAsInt("MCP_MAX_SESSIONS", 1000),
		MCPPingInterval:   getEnvAsDuration("MCP_PING_INTERVAL", 30*time.Second),
		MCPMaxBodyBytes:   getEnvAsInt("MCP_MAX_BODY_BYTES", 4<<20),

		CORSAllowOrigins: getEnvAsSlice("CORS_ALLOW_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogFilename:   getEnv("LOG_FILENAME", "logs/app.log"),
		LogMaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvAsInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvAsBool("LOG_COMPRESS", true),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
		if secs, err := strconv.Atoi(valueStr); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
