package assertlog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/platinummonkey/ingresso/pkg/identity"
	"github.com/platinummonkey/ingresso/pkg/observability"
)

// Config describes the archive bucket. AccessKey/SecretKey are optional:
// when empty the default AWS credential chain is used.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Archiver writes one object per validated assertion.
type S3Archiver struct {
	client  *s3.Client
	bucket  string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewS3Archiver creates an archiver against the configured bucket.
func NewS3Archiver(ctx context.Context, cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*S3Archiver, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{client: client, bucket: cfg.Bucket, logger: logger, metrics: metrics}, nil
}

// Archive stores the raw assertion under a key derived from the fiscal code,
// the login timestamp, and the assertion digest.
func (a *S3Archiver) Archive(ctx context.Context, fi *identity.FederatedIdentity, createdAt time.Time) error {
	key := objectKey(fi.FiscalNumber, createdAt, fi.RawAssertion)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fi.RawAssertion),
		ContentType: aws.String("application/samlassertion+xml"),
		Metadata: map[string]string{
			"idp":        fi.Issuer,
			"spid-level": string(fi.SpidLevel),
		},
	})
	a.count(err)
	if err != nil {
		return fmt.Errorf("failed to archive assertion: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"key":    key,
		"bucket": a.bucket,
	}).Debug("Assertion archived")
	return nil
}

func (a *S3Archiver) count(err error) {
	if a.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	a.metrics.AssertionArchiveTotal.WithLabelValues(outcome).Inc()
}

// objectKey lays assertions out per fiscal code, ordered by login time, with
// a digest suffix so replays of the same assertion do not collide silently.
func objectKey(fiscalCode string, createdAt time.Time, raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("assertions/%s/%s-%s.xml",
		fiscalCode,
		createdAt.UTC().Format("20060102T150405Z"),
		hex.EncodeToString(sum[:6]),
	)
}
