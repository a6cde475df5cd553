// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting used by the api and worker binaries.
type Config struct {
	AWSRegion           string
	AWSEndpointOverride string

	OrdersTable      string
	IdempotencyTable string
	OrderQueueURL    string
	SNSTopicARN      string
	MetricsNamespace string

	WorkerConcurrency     int
	StepDelay             time.Duration
	InventoryShortageRate float64
	PaymentDeclineRate    float64

	SideEffectTimeout   time.Duration
	SideEffectQueueSize int
	IdempotencyTTL      time.Duration

	LogLevel     string
	HTTPAddr     string
	RunLocal     bool
	LocalSQSBody string
}

var defaults = map[string]any{
	"AWS_REGION":              "us-east-1",
	"AWS_ENDPOINT_OVERRIDE":   "",
	"ORDERS_TABLE_NAME":       "ecommerce-orders",
	"IDEMPOTENCY_TABLE":       "ecommerce-idempotency",
	"ORDER_QUEUE_URL":         "",
	"SNS_TOPIC_ARN":           "",
	"METRICS_NAMESPACE":       "ECommerce/OrderProcessing",
	"WORKER_CONCURRENCY":      1,
	"STEP_DELAY":              "100ms",
	"INVENTORY_SHORTAGE_RATE": 0.1,
	"PAYMENT_DECLINE_RATE":    0.05,
	"SIDE_EFFECT_TIMEOUT":     "5s",
	"SIDE_EFFECT_QUEUE_SIZE":  64,
	"IDEMPOTENCY_TTL":         "48h",
	"LOG_LEVEL":               "info",
	"HTTP_ADDR":               ":8080",
	"RUN_LOCAL":               false,
	"LOCAL_SQS_BODY":          "",
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	cfg := Config{
		AWSRegion:             v.GetString("AWS_REGION"),
		AWSEndpointOverride:   v.GetString("AWS_ENDPOINT_OVERRIDE"),
		OrdersTable:           v.GetString("ORDERS_TABLE_NAME"),
		IdempotencyTable:      v.GetString("IDEMPOTENCY_TABLE"),
		OrderQueueURL:         v.GetString("ORDER_QUEUE_URL"),
		SNSTopicARN:           v.GetString("SNS_TOPIC_ARN"),
		MetricsNamespace:      v.GetString("METRICS_NAMESPACE"),
		WorkerConcurrency:     v.GetInt("WORKER_CONCURRENCY"),
		StepDelay:             v.GetDuration("STEP_DELAY"),
		InventoryShortageRate: v.GetFloat64("INVENTORY_SHORTAGE_RATE"),
		PaymentDeclineRate:    v.GetFloat64("PAYMENT_DECLINE_RATE"),
		SideEffectTimeout:     v.GetDuration("SIDE_EFFECT_TIMEOUT"),
		SideEffectQueueSize:   v.GetInt("SIDE_EFFECT_QUEUE_SIZE"),
		IdempotencyTTL:        v.GetDuration("IDEMPOTENCY_TTL"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		RunLocal:              v.GetBool("RUN_LOCAL"),
		LocalSQSBody:          v.GetString("LOCAL_SQS_BODY"),
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the binaries cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.OrdersTable == "" {
		errs = append(errs, errors.New("ORDERS_TABLE_NAME is required"))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be >= 1, got %d", c.WorkerConcurrency))
	}
	if c.StepDelay < 0 {
		errs = append(errs, fmt.Errorf("STEP_DELAY must not be negative, got %s", c.StepDelay))
	}
	for name, rate := range map[string]float64{
		"INVENTORY_SHORTAGE_RATE": c.InventoryShortageRate,
		"PAYMENT_DECLINE_RATE":    c.PaymentDeclineRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", name, rate))
		}
	}
	if c.SideEffectTimeout <= 0 {
		errs = append(errs, errors.New("SIDE_EFFECT_TIMEOUT must be positive"))
	}
	if c.SideEffectQueueSize < 1 {
		errs = append(errs, errors.New("SIDE_EFFECT_QUEUE_SIZE must be >= 1"))
	}
	return errors.Join(errs...)
}
