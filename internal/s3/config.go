package s3

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Environment variables read by LoadClientConfigFromEnv.
const (
	EnvRegion    = "COLBENCH_S3_REGION"
	EnvEndpoint  = "COLBENCH_S3_ENDPOINT"
	EnvPathStyle = "COLBENCH_S3_PATH_STYLE"
	EnvAccessKey = "COLBENCH_S3_ACCESS_KEY_ID"
	EnvSecretKey = "COLBENCH_S3_SECRET_ACCESS_KEY"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region.
	Region string

	// Endpoint is an optional custom endpoint URL for S3-compatible
	// services such as MinIO or the EOS S3 gateway.
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted
	// style. Most self-hosted object stores require it.
	UsePathStyle bool

	// Credentials are the AWS credentials to use.
	// If nil, uses the default credential chain.
	Credentials aws.CredentialsProvider
}

// LoadClientConfigFromEnv reads the client configuration from COLBENCH_S3_*
// variables. Static credentials are used only when both keys are set;
// otherwise the default AWS credential chain applies.
func LoadClientConfigFromEnv() (ClientConfig, error) {
	cfg := ClientConfig{
		Region:   envString(EnvRegion, DefaultRegion),
		Endpoint: envString(EnvEndpoint, ""),
	}

	pathStyle, err := envBool(EnvPathStyle)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.UsePathStyle = pathStyle

	access := envString(EnvAccessKey, "")
	secret := envString(EnvSecretKey, "")
	if access != "" && secret != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(access, secret, "")
	}
	return cfg, nil
}

func envString(varName, fallback string) string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(varName string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return false, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

// NewClient creates a new S3 client with the given configuration.
//
// For AWS S3:
//
//	client, err := s3store.NewClient(ctx, s3store.ClientConfig{
//	    Region: "us-east-1",
//	})
//
// For MinIO:
//
//	client, err := s3store.NewClient(ctx, s3store.ClientConfig{
//	    Region:       "us-east-1",
//	    Endpoint:     "http://localhost:9000",
//	    UsePathStyle: true,
//	    Credentials:  credentials.NewStaticCredentialsProvider("minioadmin", "minioadmin", ""),
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}
