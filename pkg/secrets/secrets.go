// Package secrets resolves sensitive configuration values from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/config"
)

var ErrEmptySecret = errors.New("secret has no value")

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Resolver struct {
	client secretsAPI
}

func NewAWSResolver(ctx context.Context, region string) (*Resolver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Resolver{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

// Get returns the secret string for ref. A ref of the form "name#key" reads
// one field of a JSON secret, e.g. "medrx/db#password".
func (r *Resolver) Get(ctx context.Context, ref string) (string, error) {
	id, key, _ := strings.Cut(ref, "#")

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", id, err)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case len(out.SecretBinary) > 0:
		raw = string(out.SecretBinary)
	}
	if raw == "" {
		return "", fmt.Errorf("secret %s: %w", id, ErrEmptySecret)
	}

	if key == "" {
		return raw, nil
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	v := fields[key]
	if v == "" {
		return "", fmt.Errorf("secret %s field %q: %w", id, key, ErrEmptySecret)
	}
	return v, nil
}

// Apply overwrites the database password and JWT secret with values from the
// configured provider, then re-validates cfg. It is a no-op without a provider.
func Apply(ctx context.Context, cfg *config.Config) error {
	if cfg.Secrets.Provider != "aws" {
		return nil
	}

	r, err := NewAWSResolver(ctx, cfg.Secrets.Region)
	if err != nil {
		return err
	}
	return apply(ctx, r, cfg)
}

func apply(ctx context.Context, r *Resolver, cfg *config.Config) error {
	if id := cfg.Secrets.DBPasswordSecretID; id != "" {
		v, err := r.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("resolving database password: %w", err)
		}
		cfg.Database.Password = v
	}

	if id := cfg.Secrets.JWTSecretID; id != "" {
		v, err := r.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("resolving jwt secret: %w", err)
		}
		cfg.JWT.Secret = v
	}

	return cfg.Validate()
}
