package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the custody service.
type Config struct {
	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database (PostgreSQL)
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	// Kafka
	KafkaBroker string
	KafkaTopic  string

	// RabbitMQ
	RabbitUser     string
	RabbitPassword string
	RabbitHost     string
	RabbitPort     string
	NotifyQueue    string
}

// LoadConfig loads configuration from environment variables.
// A .env file is loaded first if present.
func LoadConfig() *Config {
	godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "trackchain"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		KafkaBroker: getEnv("KAFKA_BROKER", ""),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "custody-events"),

		RabbitUser:     getEnv("RABBITMQ_USER", "guest"),
		RabbitPassword: getEnv("RABBITMQ_PASSWORD", "guest"),
		RabbitHost:     getEnv("RABBITMQ_HOST", ""),
		RabbitPort:     getEnv("RABBITMQ_PORT", "5672"),
		NotifyQueue:    getEnv("NOTIFY_QUEUE", "segment.pending_acceptance"),
	}
}

// GetDBURL formats the config into a PostgreSQL connection string
func (c *Config) GetDBURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// GetRabbitMQURL formats the config into a RabbitMQ connection string
func (c *Config) GetRabbitMQURL() string {
	host := c.RabbitHost
	if host == "" {
		host = "localhost"
	}
	port := c.RabbitPort
	if port == "" {
		port = "5672"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.RabbitUser, c.RabbitPassword, host, port)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
