// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Tika        TikaConfig        `mapstructure:"tika"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Document    DocumentConfig    `mapstructure:"document"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储元数据库（MySQL）的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// TikaConfig 存储备用文本提取服务（Apache Tika）的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// VectorStoreConfig 存储向量库后端的选择与连接参数。
// Backend 取值：elasticsearch | pgvector | memory，进程启动时确定一次，运行期间不可切换。
type VectorStoreConfig struct {
	Backend       string              `mapstructure:"backend"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
}

// ElasticsearchConfig 存储远端索引后端（Elasticsearch）的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// PostgresConfig 存储关系型后端（PostgreSQL + pgvector）的配置。
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
	// IvfflatLists 是 ivfflat 近似索引的候选列表数量。
	IvfflatLists int `mapstructure:"ivfflat_lists"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
	// TimeoutSeconds 是单个 Embedding 子批次调用的超时（秒）。
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	// TimeoutSeconds 是单轮生成调用的超时（秒）。
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DocumentConfig 存储文档摄取流程相关的配置。
type DocumentConfig struct {
	ChunkSize     int `mapstructure:"chunk_size"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`
	MaxChunks     int `mapstructure:"max_chunks_per_doc"`
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
	// ExtractTimeout 是单个文档文本提取阶段的超时（秒）。
	ExtractTimeout int `mapstructure:"extract_timeout_seconds"`
}

// RetrievalConfig 存储检索与问答的 topK 默认值。
// 校验边界固定：搜索 1-20，问答 1-10。
type RetrievalConfig struct {
	SearchTopK int `mapstructure:"search_top_k"`
	ChatTopK   int `mapstructure:"chat_top_k"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 为未配置的项填充缺省值。
func applyDefaults(c *Config) {
	if c.Document.ChunkSize <= 0 {
		c.Document.ChunkSize = 1000
	}
	if c.Document.ChunkOverlap < 0 {
		c.Document.ChunkOverlap = 0
	}
	if c.Document.MaxChunks <= 0 {
		c.Document.MaxChunks = 500
	}
	if c.Document.MaxFileSizeMB <= 0 {
		c.Document.MaxFileSizeMB = 50
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.VectorStore.Postgres.IvfflatLists <= 0 {
		c.VectorStore.Postgres.IvfflatLists = 100
	}
	if c.Retrieval.SearchTopK <= 0 {
		c.Retrieval.SearchTopK = 5
	}
	if c.Retrieval.ChatTopK <= 0 {
		c.Retrieval.ChatTopK = 3
	}
}
