package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DeletePolicy controls what happens to payments that still reference a
// group or user being deleted.
type DeletePolicy string

const (
	// DeletePolicyCascade removes a group's payments with the group.
	DeletePolicyCascade DeletePolicy = "cascade"
	// DeletePolicyRestrict refuses deletion while references exist.
	DeletePolicyRestrict DeletePolicy = "restrict"
)

// Provider holds the identity-provider settings shared by both binaries.
// All fields are required at process start.
type Provider struct {
	Domain       string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Audience     string
}

// Web configures the application server: session gate, graph gateway, and
// the route loader tree.
type Web struct {
	Addr        string
	MetricsAddr string
	GraphURL    string
	// SessionKey seals session cookies; 32 bytes, hex encoded in the env.
	SessionKey     string
	SessionTTL     time.Duration
	GatewayTimeout time.Duration
	RedisURL       string
	Provider       Provider
}

// Graph configures the backing graph service.
type Graph struct {
	Addr        string
	MetricsAddr string
	// JWTSigningKey validates bearer tokens minted by the identity provider
	// (HS256, shared secret).
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	PostgresURL   string
	DeletePolicy  DeletePolicy
	KafkaBrokers  []string
	AuditTopic    string
	AuditInterval time.Duration
}

// LoadWeb reads web server configuration from the environment. A .env file
// in the working directory is honored when present.
func LoadWeb() (Web, error) {
	_ = godotenv.Load()

	cfg := Web{
		Addr:           getEnv("WEB_ADDR", ":3000"),
		MetricsAddr:    getEnv("WEB_METRICS_ADDR", ":9091"),
		GraphURL:       os.Getenv("GRAPH_URL"),
		SessionKey:     os.Getenv("SESSION_KEY"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		RedisURL:       os.Getenv("REDIS_URL"),
		Provider: Provider{
			Domain:       os.Getenv("AUTH_DOMAIN"),
			ClientID:     os.Getenv("AUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("AUTH_CLIENT_SECRET"),
			CallbackURL:  os.Getenv("AUTH_CALLBACK_URL"),
			Audience:     os.Getenv("AUTH_AUDIENCE"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Web{}, err
	}
	return cfg, nil
}

// Validate reports every missing required value at once so operators fix the
// environment in one pass.
func (c Web) Validate() error {
	var missing []string
	if c.GraphURL == "" {
		missing = append(missing, "GRAPH_URL")
	}
	if c.SessionKey == "" {
		missing = append(missing, "SESSION_KEY")
	}
	if c.Provider.Domain == "" {
		missing = append(missing, "AUTH_DOMAIN")
	}
	if c.Provider.ClientID == "" {
		missing = append(missing, "AUTH_CLIENT_ID")
	}
	if c.Provider.ClientSecret == "" {
		missing = append(missing, "AUTH_CLIENT_SECRET")
	}
	if c.Provider.CallbackURL == "" {
		missing = append(missing, "AUTH_CALLBACK_URL")
	}
	if c.Provider.Audience == "" {
		missing = append(missing, "AUTH_AUDIENCE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadGraph reads graph service configuration from the environment.
func LoadGraph() (Graph, error) {
	_ = godotenv.Load()

	cfg := Graph{
		Addr:          getEnv("GRAPH_ADDR", ":8080"),
		MetricsAddr:   getEnv("GRAPH_METRICS_ADDR", ":9090"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:     os.Getenv("AUTH_DOMAIN"),
		JWTAudience:   os.Getenv("AUTH_AUDIENCE"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		DeletePolicy:  DeletePolicy(getEnv("DELETE_POLICY", string(DeletePolicyCascade))),
		AuditTopic:    getEnv("AUDIT_TOPIC", "warikan.audit"),
		AuditInterval: getEnvDuration("AUDIT_INTERVAL", 5*time.Second),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if err := cfg.Validate(); err != nil {
		return Graph{}, err
	}
	return cfg, nil
}

func (c Graph) Validate() error {
	var missing []string
	if c.JWTSigningKey == "" {
		missing = append(missing, "JWT_SIGNING_KEY")
	}
	if c.JWTIssuer == "" {
		missing = append(missing, "AUTH_DOMAIN")
	}
	if c.JWTAudience == "" {
		missing = append(missing, "AUTH_AUDIENCE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.DeletePolicy != DeletePolicyCascade && c.DeletePolicy != DeletePolicyRestrict {
		return fmt.Errorf("unknown DELETE_POLICY %q", c.DeletePolicy)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Accept bare seconds for convenience.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
