package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	Port            string
	DBDSN           string
	RMQURL          string
	ReportQueue     string
	GatewayURL      string
	GatewaySource   string
	GatewayTimeout  time.Duration
	TemplateRepoURL string
	MaxRetries      int
}

var API APIConfig

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("required env %s is not set", k)
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s is not an int: %v", k, err)
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("env %s is not a duration: %v", k, err)
	}
	return d
}

func MustLoadAPI() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	API = APIConfig{
		Port:            getenv("PORT", "8080"),
		DBDSN:           mustEnv("DB_DSN"),
		RMQURL:          mustEnv("RMQ_URL"),
		ReportQueue:     getenv("REPORT_QUEUE", "dispatch_reports"),
		GatewayURL:      mustEnv("GATEWAY_URL"),
		GatewaySource:   getenv("GATEWAY_SOURCE", "institute-admin"),
		GatewayTimeout:  getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		TemplateRepoURL: mustEnv("TEMPLATE_REPO_URL"),
		MaxRetries:      getenvInt("DISPATCH_MAX_RETRIES", 0),
	}
}
