package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

// allKeys — все переменные окружения FU_*, которые читает Load.
var allKeys = []string{
	"FU_PORT", "FU_DATA_DIR", "FU_MAX_FILE_SIZE",
	"FU_DB_HOST", "FU_DB_PORT", "FU_DB_NAME", "FU_DB_USER", "FU_DB_PASSWORD", "FU_DB_SSL_MODE",
	"FU_CACHE_SIZE", "FU_CACHE_TTL",
	"FU_RECONCILE_INTERVAL", "FU_ORPHAN_GRACE", "FU_RECONCILE_PRUNE_ORPHANS",
	"FU_DEPHEALTH_CHECK_INTERVAL", "FU_DEPHEALTH_GROUP",
	"FU_HTTP_READ_TIMEOUT", "FU_HTTP_WRITE_TIMEOUT", "FU_HTTP_IDLE_TIMEOUT",
	"FU_SHUTDOWN_TIMEOUT", "FU_LOG_LEVEL", "FU_LOG_FORMAT",
}

// setEnvVars очищает все FU_* переменные и устанавливает переданные.
// Исходные значения восстанавливаются через t.Setenv автоматически.
func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()

	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

// requiredVars — минимальный набор обязательных переменных.
func requiredVars() map[string]string {
	return map[string]string{
		"FU_DATA_DIR":    "/tmp/uploads",
		"FU_DB_USER":     "fileupload",
		"FU_DB_PASSWORD": "secret",
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvVars(t, requiredVars())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, хотели 3000", cfg.Port)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("MaxFileSize = %d, хотели %d", cfg.MaxFileSize, 100*1024*1024)
	}
	if cfg.DBHost != "localhost" || cfg.DBPort != 5432 || cfg.DBName != "fileupload" {
		t.Errorf("DB = %s:%d/%s, хотели localhost:5432/fileupload", cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, хотели disable", cfg.DBSSLMode)
	}
	if cfg.CacheSize != 1000 || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("кэш = %d/%s, хотели 1000/5m", cfg.CacheSize, cfg.CacheTTL)
	}
	if cfg.ReconcileInterval != 6*time.Hour {
		t.Errorf("ReconcileInterval = %s, хотели 6h", cfg.ReconcileInterval)
	}
	if cfg.OrphanGrace != time.Hour {
		t.Errorf("OrphanGrace = %s, хотели 1h", cfg.OrphanGrace)
	}
	if cfg.ReconcilePruneOrphans {
		t.Error("ReconcilePruneOrphans должен быть false по умолчанию")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, хотели info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, хотели json", cfg.LogFormat)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	vars := requiredVars()
	vars["FU_PORT"] = "8080"
	vars["FU_MAX_FILE_SIZE"] = "1024"
	vars["FU_CACHE_SIZE"] = "0"
	vars["FU_ORPHAN_GRACE"] = "10m"
	vars["FU_RECONCILE_PRUNE_ORPHANS"] = "true"
	vars["FU_LOG_LEVEL"] = "debug"
	vars["FU_LOG_FORMAT"] = "text"
	setEnvVars(t, vars)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, хотели 8080", cfg.Port)
	}
	if cfg.MaxFileSize != 1024 {
		t.Errorf("MaxFileSize = %d, хотели 1024", cfg.MaxFileSize)
	}
	if cfg.CacheSize != 0 {
		t.Errorf("CacheSize = %d, хотели 0", cfg.CacheSize)
	}
	if cfg.OrphanGrace != 10*time.Minute {
		t.Errorf("OrphanGrace = %s, хотели 10m", cfg.OrphanGrace)
	}
	if !cfg.ReconcilePruneOrphans {
		t.Error("ReconcilePruneOrphans должен быть true")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, хотели debug", cfg.LogLevel)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]string
		drop     string
		wantErr  string
	}{
		{name: "нет FU_DATA_DIR", drop: "FU_DATA_DIR", wantErr: "FU_DATA_DIR"},
		{name: "нет FU_DB_USER", drop: "FU_DB_USER", wantErr: "FU_DB_USER"},
		{name: "нет FU_DB_PASSWORD", drop: "FU_DB_PASSWORD", wantErr: "FU_DB_PASSWORD"},
		{name: "некорректный порт", override: map[string]string{"FU_PORT": "abc"}, wantErr: "FU_PORT"},
		{name: "порт вне диапазона", override: map[string]string{"FU_PORT": "70000"}, wantErr: "FU_PORT"},
		{name: "нулевой лимит", override: map[string]string{"FU_MAX_FILE_SIZE": "0"}, wantErr: "FU_MAX_FILE_SIZE"},
		{name: "ssl mode", override: map[string]string{"FU_DB_SSL_MODE": "maybe"}, wantErr: "FU_DB_SSL_MODE"},
		{name: "отрицательный кэш", override: map[string]string{"FU_CACHE_SIZE": "-1"}, wantErr: "FU_CACHE_SIZE"},
		{name: "длительность", override: map[string]string{"FU_CACHE_TTL": "5 minutes"}, wantErr: "FU_CACHE_TTL"},
		{name: "нулевой интервал сверки", override: map[string]string{"FU_RECONCILE_INTERVAL": "0s"}, wantErr: "FU_RECONCILE_INTERVAL"},
		{name: "отрицательный grace", override: map[string]string{"FU_ORPHAN_GRACE": "-1m"}, wantErr: "FU_ORPHAN_GRACE"},
		{
			name:     "нулевой grace при удалении orphan",
			override: map[string]string{"FU_ORPHAN_GRACE": "0s", "FU_RECONCILE_PRUNE_ORPHANS": "true"},
			wantErr:  "FU_ORPHAN_GRACE",
		},
		{
			name:     "короткий grace при удалении orphan",
			override: map[string]string{"FU_ORPHAN_GRACE": "10s", "FU_RECONCILE_PRUNE_ORPHANS": "true"},
			wantErr:  "FU_ORPHAN_GRACE",
		},
		{name: "bool", override: map[string]string{"FU_RECONCILE_PRUNE_ORPHANS": "yes"}, wantErr: "FU_RECONCILE_PRUNE_ORPHANS"},
		{name: "уровень логов", override: map[string]string{"FU_LOG_LEVEL": "trace"}, wantErr: "FU_LOG_LEVEL"},
		{name: "формат логов", override: map[string]string{"FU_LOG_FORMAT": "xml"}, wantErr: "FU_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := requiredVars()
			for k, v := range tt.override {
				vars[k] = v
			}
			if tt.drop != "" {
				delete(vars, tt.drop)
			}
			setEnvVars(t, vars)

			_, err := Load()
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ошибка %q не содержит %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_ZeroGraceWithoutPrune(t *testing.T) {
	vars := requiredVars()
	vars["FU_ORPHAN_GRACE"] = "0s"
	setEnvVars(t, vars)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	if cfg.OrphanGrace != 0 || cfg.ReconcilePruneOrphans {
		t.Errorf("OrphanGrace = %s, ReconcilePruneOrphans = %v", cfg.OrphanGrace, cfg.ReconcilePruneOrphans)
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{
		DBHost:     "db",
		DBPort:     5433,
		DBName:     "files",
		DBUser:     "user",
		DBPassword: "p@ss",
		DBSSLMode:  "disable",
	}

	got := cfg.DatabaseURL("pgx5")
	want := "pgx5://user:p%40ss@db:5433/files?sslmode=disable"
	if got != want {
		t.Errorf("DatabaseURL() = %q, хотели %q", got, want)
	}

	dsn := cfg.DatabaseDSN()
	if !strings.Contains(dsn, "host=db") || !strings.Contains(dsn, "port=5433") {
		t.Errorf("DatabaseDSN() = %q", dsn)
	}
}
