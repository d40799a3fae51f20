package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var ErrEmptyParameter = errors.New("parameter has no value")

// ParameterGetter is the subset of the SSM client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	// Default credential chain: the execution role under Lambda, the local
	// profile or environment keys under serve.
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// NeedsSecretResolution reports whether the connection string must come from
// Parameter Store.
func (c *Config) NeedsSecretResolution() bool {
	return c.MongoDBURI == "" && c.MongoDBURIParameter != ""
}

// ResolveMongoURI fills MongoDBURI from the SecureString parameter named by
// MongoDBURIParameter. An explicit MONGODB_URI always wins.
func (c *Config) ResolveMongoURI(ctx context.Context, client ParameterGetter) error {
	if !c.NeedsSecretResolution() {
		return nil
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(c.MongoDBURIParameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("ssm get parameter %s: %w", c.MongoDBURIParameter, err)
	}
	if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
		return fmt.Errorf("ssm parameter %s: %w", c.MongoDBURIParameter, ErrEmptyParameter)
	}

	c.MongoDBURI = strings.TrimSpace(aws.ToString(out.Parameter.Value))
	return nil
}
