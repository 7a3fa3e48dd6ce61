package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/timmy/museguide/internal/domain"
)

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Qdrant      QdrantConfig      `mapstructure:"qdrant"`
	Storage     StorageConfig     `mapstructure:"storage"`
	ModelScope  ModelScopeConfig  `mapstructure:"modelscope"`
	Zhipu       ZhipuConfig       `mapstructure:"zhipu"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Narration   NarrationConfig   `mapstructure:"narration"`
	TTS         TTSConfig         `mapstructure:"tts"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// ModelScopeConfig covers the chat, vision, and embedding capabilities
// served behind one OpenAI-compatible endpoint.
type ModelScopeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ZhipuConfig covers the speech synthesis capability.
type ZhipuConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type RecognitionConfig struct {
	VLMModel            string  `mapstructure:"vlm_model"`
	SecondaryVLMModel   string  `mapstructure:"secondary_vlm_model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"`
	SimilarityThreshold float32 `mapstructure:"similarity_threshold"`
}

type NarrationConfig struct {
	Model      string `mapstructure:"model"`
	PromptsDir string `mapstructure:"prompts_dir"`
}

type TTSConfig struct {
	Model  string            `mapstructure:"model"`
	Voices map[string]string `mapstructure:"voices"`
}

// Load reads configuration from the optional YAML file and the
// environment. A .env file in the working directory is honored the same
// way the rest of the deployment tooling expects.
// Parameters:
//   - configPath: explicit config file path; empty enables the default
//     search (./configs/config.yaml, ./config.yaml).
// Returns:
//   - *Config: populated configuration.
//   - error: non-nil if the file exists but cannot be parsed.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/museguide.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "artworks")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "audio-cache")
	v.SetDefault("modelscope.base_url", "https://api-inference.modelscope.cn/v1")
	v.SetDefault("zhipu.base_url", "https://open.bigmodel.cn/api/paas/v4")
	v.SetDefault("recognition.vlm_model", "Qwen/Qwen2.5-VL-7B-Instruct")
	v.SetDefault("recognition.secondary_vlm_model", "moonshotai/Kimi-K2.5")
	v.SetDefault("recognition.embedding_model", "Qwen/Qwen3-Embedding-4B")
	v.SetDefault("recognition.embedding_dimensions", 1536)
	v.SetDefault("recognition.similarity_threshold", 0.8)
	v.SetDefault("narration.model", "Qwen/Qwen3-32B")
	v.SetDefault("narration.prompts_dir", "./prompts")
	v.SetDefault("tts.model", "glm-tts")
	v.SetDefault("tts.voices", map[string]string{
		"professional": "tongtong",
		"casual":       "xiaochen",
	})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for secrets and deployment knobs
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("modelscope.api_key", "MODELSCOPE_API_KEY")
	v.BindEnv("modelscope.base_url", "MODELSCOPE_API_BASE")
	v.BindEnv("zhipu.api_key", "ZHIPU_API_KEY")
	v.BindEnv("zhipu.base_url", "ZHIPU_API_BASE")
	v.BindEnv("recognition.vlm_model", "VLM_MODEL")
	v.BindEnv("recognition.secondary_vlm_model", "KIMI_VLM_MODEL")
	v.BindEnv("recognition.similarity_threshold", "SIMILARITY_THRESHOLD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks required credentials and the completeness of the
// fixed style lookup tables. Missing items are returned together so an
// operator sees the whole problem at once.
func (c *Config) Validate() error {
	var missing []string

	if c.ModelScope.APIKey == "" {
		missing = append(missing, "MODELSCOPE_API_KEY")
	}
	if c.Zhipu.APIKey == "" {
		missing = append(missing, "ZHIPU_API_KEY")
	}
	for _, style := range domain.Styles {
		if c.TTS.Voices[string(style)] == "" {
			missing = append(missing, fmt.Sprintf("tts.voices.%s", style))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
