package config

import (
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Knot      KnotConfig
	Reference ReferenceConfig
	Analytics AnalyticsConfig
	Observ    ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicInsights string
	ConsumerGroup string
}

// KnotConfig describes the transaction ingestion endpoints.
type KnotConfig struct {
	Source             string
	DataDir            string
	DevURL             string
	MockURL            string
	BasicAuth          string
	DefaultUserID      string
	DefaultMerchantIDs []int64
	SyncLimit          int
}

type ReferenceConfig struct {
	URL        string
	MaxAgeDays int
}

// AnalyticsConfig holds the heuristic thresholds used by the insight pipeline.
// Defaults: a refill is "approaching" within 5 days, a purchase is overpriced at
// 1.5x the reference price, and a price spike is 2x the historical average.
type AnalyticsConfig struct {
	ApproachingThresholdDays int
	OverpriceMultiplier      float64
	PriceSpikeMultiplier     float64
	DefaultCadenceDays       int
	DuplicateWindowDays      int
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	PrometheusPort string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	refMaxAge, _ := strconv.Atoi(getEnv("REFERENCE_PRICE_MAX_AGE_DAYS", "14"))
	approaching, _ := strconv.Atoi(getEnv("APPROACHING_THRESHOLD_DAYS", "5"))
	overprice, _ := strconv.ParseFloat(getEnv("OVERPRICE_MULTIPLIER", "1.5"), 64)
	spike, _ := strconv.ParseFloat(getEnv("PRICE_SPIKE_MULTIPLIER", "2.0"), 64)
	cadence, _ := strconv.Atoi(getEnv("DEFAULT_CADENCE_DAYS", "30"))
	dupWindow, _ := strconv.Atoi(getEnv("DUPLICATE_WINDOW_DAYS", "14"))
	syncLimit, _ := strconv.Atoi(getEnv("SYNC_LIMIT", "25"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicInsights: getEnv("KAFKA_TOPIC_INSIGHT_EVENTS", "insight-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "medtrack-service-group"),
		},
		Knot: KnotConfig{
			Source:             strings.ToLower(getEnv("DATA_SOURCE", "local")),
			DataDir:            getEnv("DATA_DIR", "./data"),
			DevURL:             getEnv("KNOT_DEV_URL", "https://development.knotapi.com"),
			MockURL:            getEnv("KNOT_MOCK_URL", "https://knot.tunnel.tel"),
			BasicAuth:          knotBasicAuth(),
			DefaultUserID:      getEnv("DEFAULT_EXTERNAL_USER_ID", "abc"),
			DefaultMerchantIDs: parseMerchantIDs(getEnv("DEFAULT_MERCHANT_IDS", "44,45,12")),
			SyncLimit:          syncLimit,
		},
		Reference: ReferenceConfig{
			URL: getEnv("REFERENCE_PRICE_URL",
				"https://raw.githubusercontent.com/synthetichealth/synthea/master/src/main/resources/costs/medications.csv"),
			MaxAgeDays: refMaxAge,
		},
		Analytics: AnalyticsConfig{
			ApproachingThresholdDays: approaching,
			OverpriceMultiplier:      overprice,
			PriceSpikeMultiplier:     spike,
			DefaultCadenceDays:       cadence,
			DuplicateWindowDays:      dupWindow,
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			PrometheusPort: getEnv("PROMETHEUS_PORT", "9090"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, source=%s", cfg.Server.Env, cfg.Server.Port, cfg.Knot.Source)
	return cfg
}

func knotBasicAuth() string {
	if auth := os.Getenv("KNOT_BASIC_AUTH"); auth != "" {
		return auth
	}
	clientID := os.Getenv("KNOT_CLIENT_ID")
	secret := os.Getenv("KNOT_SECRET")
	if clientID == "" || secret == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + secret))
}

func parseMerchantIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
