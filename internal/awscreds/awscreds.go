// Package awscreds resolves AWS credentials in-process through the SDK's
// default chain (environment, shared config, web identity, container and
// instance roles) so they can be handed to the engine as an explicit secret.
package awscreds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

var ErrNoCredentials = errors.New("no aws credentials resolved")

type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

type Resolver interface {
	Resolve(ctx context.Context) (Credentials, error)
}

type SDKResolver struct {
	// Region is used when the default chain yields none.
	Region      string
	LoadOptions []func(*awsconfig.LoadOptions) error
}

func NewSDKResolver(region string, opts ...func(*awsconfig.LoadOptions) error) *SDKResolver {
	return &SDKResolver{Region: strings.TrimSpace(region), LoadOptions: opts}
}

func (r *SDKResolver) Resolve(ctx context.Context) (Credentials, error) {
	opts := append([]func(*awsconfig.LoadOptions) error{}, r.LoadOptions...)
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return Credentials{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Credentials == nil {
		return Credentials{}, ErrNoCredentials
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("retrieve aws credentials: %w", err)
	}
	if !creds.HasKeys() {
		return Credentials{}, ErrNoCredentials
	}

	region := cfg.Region
	if region == "" {
		region = r.Region
	}
	return Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Region:          region,
	}, nil
}

// Static returns a Resolver that always yields creds.
func Static(creds Credentials) Resolver {
	return staticResolver(creds)
}

type staticResolver Credentials

func (s staticResolver) Resolve(context.Context) (Credentials, error) {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials(s), nil
}
