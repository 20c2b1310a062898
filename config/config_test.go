package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Store.Driver != "duckdb" || cfg.Recommend.NeighborK != 20 || cfg.Batch.ChunkSize != 100 {
		t.Errorf("默认值错误: %+v", cfg)
	}
	if cfg.Store.Breaker.FailureThreshold != 5 {
		t.Errorf("熔断默认值错误: %+v", cfg.Store.Breaker)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playrec.yaml")
	content := `
store:
  driver: memory
  breaker:
    timeout: 5s
recommend:
  seed_k: 7
  metric: spearman
batch:
  workers: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLAYREC_RECOMMEND_SEED_K", "3")
	t.Setenv("PLAYREC_STORE_BREAKER_FAILURE_THRESHOLD", "9")
	t.Setenv("PLAYREC_DERIVED_SINK", "badger")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("文件应覆盖默认值: %s", cfg.Store.Driver)
	}
	if cfg.Recommend.SeedK != 3 {
		t.Errorf("环境变量应覆盖文件: %d", cfg.Recommend.SeedK)
	}
	if cfg.Recommend.Metric != "spearman" || cfg.Batch.Workers != 2 {
		t.Errorf("文件配置丢失: %+v", cfg.Recommend)
	}
	if cfg.Store.Breaker.Timeout != 5*time.Second || cfg.Store.Breaker.FailureThreshold != 9 {
		t.Errorf("熔断配置错误: %+v", cfg.Store.Breaker)
	}
	if cfg.Derived.Sink != "badger" {
		t.Errorf("derived.sink = %s", cfg.Derived.Sink)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"PLAYREC_STORE_DSN":             "store.dsn",
		"PLAYREC_RECOMMEND_NEIGHBOR_K":  "recommend.neighbor_k",
		"PLAYREC_STORE_BREAKER_TIMEOUT": "store.breaker.timeout",
		"PLAYREC_DERIVED_REDIS_ADDR":    "derived.redis_addr",
		"PLAYREC_CONFIG":                "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%s) = %q，期望 %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sink", func(c *Config) { c.Derived.Sink = "s3" }},
		{"redis addr", func(c *Config) { c.Derived.Sink = "redis"; c.Derived.RedisAddr = "" }},
		{"seed_k", func(c *Config) { c.Recommend.SeedK = 0 }},
		{"k", func(c *Config) { c.Recommend.K = -1 }},
		{"min_common", func(c *Config) { c.Recommend.MinCommon = 1 }},
		{"metric", func(c *Config) { c.Recommend.Metric = "euclid" }},
		{"strategy", func(c *Config) { c.Recommend.Strategy = "random" }},
		{"exclusion", func(c *Config) { c.Recommend.Exclusion = "title" }},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }},
		{"chunk", func(c *Config) { c.Batch.ChunkSize = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}
