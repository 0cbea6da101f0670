package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/platform/env"
)

type Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Region          string
	UseSSL          bool
	BucketArtifacts string
	BucketAudit     string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("VENTUREOS_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:        env.String("VENTUREOS_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:       env.String("VENTUREOS_MINIO_ACCESS_KEY", "ventureos"),
		SecretKey:       env.String("VENTUREOS_MINIO_SECRET_KEY", "ventureosminio"),
		Region:          env.String("VENTUREOS_MINIO_REGION", "us-east-1"),
		UseSSL:          useSSL,
		BucketArtifacts: env.String("VENTUREOS_MINIO_BUCKET_ARTIFACTS", "artifacts"),
		BucketAudit:     env.String("VENTUREOS_MINIO_BUCKET_AUDIT", "audit-exports"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketArtifacts) == "" {
		return errors.New("artifacts bucket is required")
	}
	if strings.TrimSpace(c.BucketAudit) == "" {
		return errors.New("audit bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
