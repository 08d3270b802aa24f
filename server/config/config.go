package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cyclopcam/henhouse/pkg/kibi"
	"github.com/cyclopcam/henhouse/server/log"
)

// Defaults
const (
	DefaultMQTTHost           = "localhost"
	DefaultMQTTPort           = 1883
	DefaultMQTTConnectTimeout = 10 * time.Second
	DefaultImageURL           = "not_set"
	DefaultImageFile          = "snapshot.jpeg"
	DefaultModelFile          = "models/henhouse.onnx"
	DefaultDetectionInterval  = 900 * time.Second
	DefaultFetchTimeout       = 50 * time.Second
	DefaultMaxImageBytes      = 64 * 1024 * 1024
	DefaultMemoryLogInterval  = 10 // cycles
)

type ImageSourceKind string

const (
	ImageSourceFile ImageSourceKind = "file"
	ImageSourceURL  ImageSourceKind = "url"
)

type MQTT struct {
	Host     string
	Port     int
	Username string // Empty means no authentication
	Password string
	UseTLS   bool

	ConnectTimeout time.Duration
}

func (m *MQTT) BrokerURL() string {
	scheme := "tcp"
	if m.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%v://%v:%v", scheme, m.Host, m.Port)
}

// Config is built once at startup and shared by pointer
type Config struct {
	MQTT              MQTT
	ImageSource       ImageSourceKind
	ImageURL          string
	ImageFile         string
	ModelFile         string
	OnnxRuntimeLib    string        // Empty to use the platform default
	LogLevel          log.Level     // Minimum level that is emitted
	StatusAddr        string        // Listen address of the status HTTP server. Empty to disable.
	MemoryWarnBytes   int64         // Warn when RSS exceeds this. Zero to disable.
	DetectionInterval time.Duration // Sleep between cycles
	FetchTimeout      time.Duration // Timeout of an HTTP image fetch
	MaxImageBytes     int64         // Largest image body that we'll accept over HTTP
	MemoryLogInterval int           // Every N completed cycles, we force a GC and log memory usage
	Warnings          []string      // Settings that were invalid and replaced by defaults
}

// FromEnv reads the configuration from the process environment
func FromEnv() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration through 'lookup', which has the same contract as os.LookupEnv.
// Variables that are set to an empty string are treated as unset.
func FromLookup(lookup func(key string) (string, bool)) (*Config, error) {
	getEnv := func(key, defaultVal string) string {
		if val, ok := lookup(key); ok && val != "" {
			return val
		}
		return defaultVal
	}

	c := &Config{
		MQTT: MQTT{
			Host:     getEnv("MQTT_HOST", DefaultMQTTHost),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
			UseTLS:   strings.ToLower(getEnv("MQTT_USE_TLS", "false")) == "true",

			ConnectTimeout: DefaultMQTTConnectTimeout,
		},
		ImageSource:       ImageSourceFile,
		ImageURL:          getEnv("IMAGE_URL", DefaultImageURL),
		ImageFile:         getEnv("IMAGE_FILE", DefaultImageFile),
		ModelFile:         DefaultModelFile,
		OnnxRuntimeLib:    getEnv("ONNXRUNTIME_LIB", ""),
		StatusAddr:        getEnv("HENHOUSE_STATUS_ADDR", ""),
		DetectionInterval: DefaultDetectionInterval,
		FetchTimeout:      DefaultFetchTimeout,
		MaxImageBytes:     DefaultMaxImageBytes,
		MemoryLogInterval: DefaultMemoryLogInterval,
	}

	portStr := getEnv("MQTT_PORT", strconv.Itoa(DefaultMQTTPort))
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("Invalid MQTT_PORT '%v'", portStr)
	}
	c.MQTT.Port = port

	if strings.ToLower(getEnv("IMAGE_SOURCE", string(ImageSourceFile))) == string(ImageSourceURL) {
		c.ImageSource = ImageSourceURL
	}

	// Bad logging or memory settings must not stop the process, so we fall back to defaults
	// and leave a warning for the caller to log once the logger exists.
	c.LogLevel, err = log.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	if err != nil {
		c.LogLevel = log.LevelInfo
		c.Warnings = append(c.Warnings, fmt.Sprintf("Invalid LOG_LEVEL (%v), using INFO", err))
	}

	if warn := getEnv("HENHOUSE_MEMORY_WARN", ""); warn != "" {
		c.MemoryWarnBytes, err = kibi.ParseBytes(warn)
		if err != nil {
			c.MemoryWarnBytes = 0
			c.Warnings = append(c.Warnings, fmt.Sprintf("Invalid HENHOUSE_MEMORY_WARN '%v' (%v), memory warning disabled", warn, err))
		}
	}

	return c, nil
}

// Describe the image source, for logs
func (c *Config) ImageSourceDescription() string {
	if c.ImageSource == ImageSourceURL {
		return "url " + c.ImageURL
	}
	return "file " + c.ImageFile
}
