package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	UploadDirectory     string
	LogDirectory        string
	LogLevel            string
	ModelDirectory      string
	ModelsFile          string
	MaxUploadMB         int64
	DefaultModel        string
	InferenceEngine     string // worker albo opencv
	InferenceDevice     string // cpu albo cuda
	WorkerCommand       string
	SamplingStride      int  // Co którą klatkę wideo przetwarzać
	DedupEnabled        bool // Pomijaj klatki z tą samą pozycją GPS
	OCREnabled          bool
	OCRProvider         string
	OCRLanguage         string
	GoogleVisionAPIKey  string
	GoogleMapsAPIKey    string
	CropHeight          int
	CollaboratorTimeout time.Duration
	JPEGQuality         int
	StoreBackend        string
	DatabasePath        string
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	StorageAccountName  string
	ContainerName       string
	SASToken            string
	MQTTBroker          string
	MQTTTopic           string
	AutoSave            bool
	ArchiveBufferLimit  int
	Models              map[string]ModelSpec
}

// Load reads the optional .env file, then the environment, then the models registry.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 5000),
		UploadDirectory:     getEnv("UPLOAD_DIR", filepath.Join(".", "uploads")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ModelDirectory:      getEnv("MODEL_DIR", filepath.Join(".", "models")),
		ModelsFile:          getEnv("MODELS_FILE", ""),
		MaxUploadMB:         getEnvAsInt64("MAX_UPLOAD_MB", 512),
		DefaultModel:        getEnv("DEFAULT_MODEL", "yolov11n"),
		InferenceEngine:     strings.ToLower(getEnv("INFERENCE_ENGINE", "worker")),
		InferenceDevice:     strings.ToLower(getEnv("INFERENCE_DEVICE", "cpu")),
		WorkerCommand:       getEnv("WORKER_COMMAND", filepath.Join(".", "models", "run_worker.sh")),
		SamplingStride:      getEnvAsInt("SAMPLING_STRIDE", 30),
		DedupEnabled:        getEnvAsBool("DEDUP_ENABLED", true),
		OCREnabled:          getEnvAsBool("OCR_ENABLED", true),
		OCRProvider:         strings.ToLower(getEnv("OCR_PROVIDER", "vision")),
		OCRLanguage:         getEnv("OCR_LANGUAGE", "eng"),
		GoogleVisionAPIKey:  getEnv("GOOGLE_VISION_API_KEY", ""),
		GoogleMapsAPIKey:    getEnv("GOOGLE_MAPS_API_KEY", ""),
		CropHeight:          getEnvAsInt("GEOTAG_CROP_HEIGHT", 100),
		CollaboratorTimeout: getEnvAsDuration("COLLABORATOR_TIMEOUT", 10*time.Second),
		JPEGQuality:         getEnvAsInt("JPEG_QUALITY", 90),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "potholes.db")),
		MongoURI:            getEnv("MONGODB_URI", ""),
		MongoDatabase:       getEnv("MONGODB_DATABASE", "potholytics"),
		MongoCollection:     getEnv("MONGODB_COLLECTION", "potholes"),
		StorageAccountName:  getEnv("STORAGE_ACCOUNT_NAME", ""),
		ContainerName:       getEnv("CONTAINER_NAME", ""),
		SASToken:            getEnv("AZURE_SAS_TOKEN", ""),
		MQTTBroker:          getEnv("MQTT_BROKER", ""),
		MQTTTopic:           getEnv("MQTT_TOPIC", "potholytics/results"),
		AutoSave:            getEnvAsBool("AUTO_SAVE", false),
		ArchiveBufferLimit:  getEnvAsInt("ARCHIVE_BUFFER_LIMIT", 50),
	}

	if cfg.SamplingStride < 1 {
		cfg.SamplingStride = 1
	}

	models, err := loadModels(cfg.ModelDirectory, cfg.ModelsFile)
	if err != nil {
		return nil, err
	}
	cfg.Models = models

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
