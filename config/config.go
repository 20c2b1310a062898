package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/match"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/score"
	"github.com/rushteam/playrec/store"
)

// EnvPrefix 是环境变量前缀：PLAYREC_STORE_DSN -> store.dsn
const EnvPrefix = "PLAYREC_"

// ConfigPathEnvVar 指定配置文件路径的环境变量。
const ConfigPathEnvVar = "PLAYREC_CONFIG"

// Config 是应用配置。
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Derived   DerivedConfig   `koanf:"derived"`
	Recommend RecommendConfig `koanf:"recommend"`
	Batch     BatchConfig     `koanf:"batch"`
	Logging   logging.Config  `koanf:"logging"`
}

// StoreConfig 游玩数据存储。
type StoreConfig struct {
	// Driver duckdb 或 memory
	Driver  string              `koanf:"driver"`
	DSN     string              `koanf:"dsn"`
	Breaker store.BreakerConfig `koanf:"breaker"`
}

// DerivedConfig 派生向量（游玩比例、质心）的写出目标。
// 主存储总是 DuckDB；Sink 为 redis / badger 时额外镜像一份。
type DerivedConfig struct {
	// Sink duckdb / redis / badger
	Sink          string `koanf:"sink"`
	Prefix        string `koanf:"prefix"`
	TTL           int    `koanf:"ttl"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	BadgerPath    string `koanf:"badger_path"`
}

// RecommendConfig 推荐参数。
type RecommendConfig struct {
	SeedK       int    `koanf:"seed_k"`
	K           int    `koanf:"k"`
	NeighborK   int    `koanf:"neighbor_k"`
	NeighborTop int    `koanf:"neighbor_top"`
	MinCommon   int    `koanf:"min_common"`
	Metric      string `koanf:"metric"`
	Strategy    string `koanf:"strategy"`
	Exclusion   string `koanf:"exclusion"`
	Scope       string `koanf:"scope"`
	// NeighborPool 候选池限定为近邻用户拥有的物品
	NeighborPool bool `koanf:"neighbor_pool"`
}

// BatchConfig 批处理参数。
type BatchConfig struct {
	Workers   int  `koanf:"workers"`
	ChunkSize int  `koanf:"chunk_size"`
	Resume    bool `koanf:"resume"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:  "duckdb",
			DSN:     "playrec.duckdb",
			Breaker: store.DefaultBreakerConfig(),
		},
		Derived: DerivedConfig{
			Sink:      "duckdb",
			Prefix:    "playrec",
			RedisAddr: "localhost:6379",
		},
		Recommend: RecommendConfig{
			SeedK:       10,
			K:           10,
			NeighborK:   20,
			NeighborTop: 5,
			MinCommon:   3,
			Metric:      "cosine",
			Strategy:    "optimal",
			Exclusion:   "id",
			Scope:       "played",
		},
		Batch: BatchConfig{
			Workers:   4,
			ChunkSize: 100,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load 按 默认值 -> YAML 文件 -> 环境变量 的顺序加载配置，后者覆盖前者。
// path 为空时读取 PLAYREC_CONFIG；仍为空则不加载文件。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc 把环境变量名转换为配置路径：
//   - PLAYREC_STORE_DSN -> store.dsn
//   - PLAYREC_RECOMMEND_SEED_K -> recommend.seed_k
//   - PLAYREC_STORE_BREAKER_TIMEOUT -> store.breaker.timeout
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	if section == "store" && strings.HasPrefix(rest, "breaker_") {
		return "store.breaker." + strings.TrimPrefix(rest, "breaker_")
	}
	return section + "." + rest
}

// Validate 校验枚举与取值范围。
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "duckdb", "memory":
	default:
		return fmt.Errorf("store.driver must be duckdb or memory, got %q", c.Store.Driver)
	}
	switch c.Derived.Sink {
	case "duckdb", "redis", "badger":
	default:
		return fmt.Errorf("derived.sink must be duckdb, redis or badger, got %q", c.Derived.Sink)
	}
	if c.Derived.Sink == "redis" && c.Derived.RedisAddr == "" {
		return fmt.Errorf("derived.redis_addr is required for the redis sink")
	}

	r := c.Recommend
	if r.SeedK <= 0 || r.NeighborK <= 0 || r.NeighborTop <= 0 {
		return fmt.Errorf("recommend.seed_k, neighbor_k and neighbor_top must be positive")
	}
	if r.K < 0 {
		return fmt.Errorf("recommend.k must be non-negative, got %d", r.K)
	}
	if r.MinCommon < 2 {
		return fmt.Errorf("recommend.min_common must be at least 2, got %d", r.MinCommon)
	}
	if _, err := score.ParseMetric(r.Metric); err != nil {
		return err
	}
	if _, err := match.ParseStrategy(r.Strategy); err != nil {
		return err
	}
	if _, err := filter.ParseMode(r.Exclusion); err != nil {
		return err
	}
	if _, err := filter.ParseScope(r.Scope); err != nil {
		return err
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if c.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be positive, got %d", c.Batch.ChunkSize)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}
	return nil
}
