package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации редактора.

type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Editor      EditorConfig      `yaml:"editor"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type StorageConfig struct {
	DataPath string `yaml:"data_path"`
}

type EditorConfig struct {
	MaxEnvironmentObjects int     `yaml:"max_environment_objects"`
	ViewDistance          float64 `yaml:"view_distance"`
	CullIntervalMs        int     `yaml:"cull_interval_ms"`
	PlacementGraceMs      int     `yaml:"placement_grace_ms"`
	SpatialCellSize       float64 `yaml:"spatial_cell_size"`
	ImportSliceSize       int     `yaml:"import_slice_size"`
}

type PersistenceConfig struct {
	AutoFlushSeconds int `yaml:"auto_flush_seconds"`
	WriteBatchSize   int `yaml:"write_batch_size"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

// GetDataPath возвращает путь к данным с приоритетом: config -> env -> default
func (s *StorageConfig) GetDataPath() string {
	if s.DataPath != "" {
		return s.DataPath
	}
	if envVal := os.Getenv("EDITOR_DATA_PATH"); envVal != "" {
		return envVal
	}
	return "data"
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(m.Port, "EDITOR_METRICS_PORT", 2112)
}

// GetMaxEnvironmentObjects возвращает глобальный лимит инстансов окружения
func (e *EditorConfig) GetMaxEnvironmentObjects() int {
	return getIntWithEnvFallback(e.MaxEnvironmentObjects, "EDITOR_MAX_ENV_OBJECTS", 4096)
}

// GetViewDistance возвращает дистанцию видимости для куллинга
func (e *EditorConfig) GetViewDistance() float64 {
	if e.ViewDistance > 0 {
		return e.ViewDistance
	}
	return 128.0
}

// GetCullIntervalMs возвращает минимальный интервал между проходами куллинга
func (e *EditorConfig) GetCullIntervalMs() int {
	if e.CullIntervalMs > 0 {
		return e.CullIntervalMs
	}
	return 200
}

// GetPlacementGraceMs возвращает окно, в течение которого свежепоставленный
// инстанс не может быть скрыт куллингом
func (e *EditorConfig) GetPlacementGraceMs() int {
	if e.PlacementGraceMs > 0 {
		return e.PlacementGraceMs
	}
	return 1500
}

// GetSpatialCellSize возвращает размер ячейки пространственного индекса
func (e *EditorConfig) GetSpatialCellSize() float64 {
	if e.SpatialCellSize > 0 {
		return e.SpatialCellSize
	}
	return 1.0
}

// GetImportSliceSize возвращает размер инкремента пакетного импорта
func (e *EditorConfig) GetImportSliceSize() int {
	if e.ImportSliceSize > 0 {
		return e.ImportSliceSize
	}
	return 512
}

// GetAutoFlushSeconds возвращает период автосохранения
func (p *PersistenceConfig) GetAutoFlushSeconds() int {
	if p.AutoFlushSeconds > 0 {
		return p.AutoFlushSeconds
	}
	return 30
}

// GetWriteBatchSize возвращает размер суб-батча записи в durable store
func (p *PersistenceConfig) GetWriteBatchSize() int {
	if p.WriteBatchSize > 0 {
		return p.WriteBatchSize
	}
	return 256
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configVal int, envVar string, defaultVal int) int {
	if configVal > 0 {
		return configVal
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV EDITOR_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("EDITOR_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
