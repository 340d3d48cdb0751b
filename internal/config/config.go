// Package config defines service configuration and how it is loaded.
package config

import (
	"time"
)

// Contract versions for POST /audio-clasificar.
const (
	// ContractV1 accepts a request without punto_id and skips the metrics write.
	ContractV1 = "v1"
	// ContractV2 rejects a request without punto_id with 400.
	ContractV2 = "v2"
)

// DefaultLabels is the candidate-label list sent with every classification.
// It covers every label the KPI formulas read.
var DefaultLabels = []string{
	"Satisfacción del cliente",
	"Buena atención del personal",
	"Surtido completo de productos",
	"Alta afluencia de clientes",
	"Producto dañado o defectuoso",
	"Producto faltante o no disponible",
	"Problemas de surtido",
	"Atención al cliente",
}

// Config contains process configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string `koanf:"port"`

	// Environment selects the log formatter: "local" (or empty) is text, anything else JSON.
	Environment string `koanf:"environment"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	OpenAIKey          string `koanf:"openai_key"`
	OpenAIBaseURL      string `koanf:"openai_base_url"`
	WhisperModel       string `koanf:"whisper_model"`
	TranscribeLanguage string `koanf:"transcribe_language"`

	// HFToken authenticates against the Hugging Face inference API.
	HFToken   string `koanf:"api_token"`
	HFBaseURL string `koanf:"hf_base_url"`
	HFModel   string `koanf:"hf_model"`

	// Labels is the candidate-label list. Env form is comma separated.
	Labels []string `koanf:"classifier_labels"`

	// StrictLabels fails startup when a KPI formula label is not a candidate.
	StrictLabels bool `koanf:"strict_labels"`

	// ClassifyContract is ContractV1 or ContractV2.
	ClassifyContract string `koanf:"classify_contract"`

	// DatabaseURL is a Postgres DSN (Supabase connection string).
	DatabaseURL string `koanf:"database_url"`

	CSVPath     string `koanf:"csv_path"`
	GeoJSONPath string `koanf:"geojson_path"`

	// TempDir holds downloaded audio; empty means os.TempDir().
	TempDir string `koanf:"temp_dir"`

	// HTTPTimeoutSec bounds each outbound HTTP call. Zero disables the timeout.
	HTTPTimeoutSec int `koanf:"http_timeout_sec"`

	CORSOrigins []string `koanf:"cors_origins"`

	// MetricsNamespace prefixes every Prometheus series.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsBuckets overrides the latency histogram buckets, in seconds.
	MetricsBuckets []float64 `koanf:"metrics_buckets"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		Port:               "3001",
		Environment:        "local",
		LogLevel:           "info",
		OpenAIBaseURL:      "https://api.openai.com/v1",
		WhisperModel:       "whisper-1",
		TranscribeLanguage: "es",
		HFBaseURL:          "https://api-inference.huggingface.co",
		HFModel:            "joeddav/xlm-roberta-large-xnli",
		Labels:             append([]string(nil), DefaultLabels...),
		ClassifyContract:   ContractV2,
		CSVPath:            "data/puntos_venta.csv",
		GeoJSONPath:        "data/puntos_venta.geojson",
		HTTPTimeoutSec:     120,
		CORSOrigins:        []string{"*"},
		MetricsNamespace:   "posrelay",
	}
}

// HTTPTimeout returns HTTPTimeoutSec as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// RequirePuntoID reports whether the active contract makes punto_id mandatory.
func (c *Config) RequirePuntoID() bool {
	return c.ClassifyContract == ContractV2
}
