package objectstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Credentials is the access/secret pair handed back by the metadata client's
// GetObjectStoreCredentials call (spec.md §4.2). The object store never
// discovers its own credentials — they are always injected at construction.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// LoadAWSConfig builds an aws.Config pinned to static, caller-supplied
// credentials and region, the same shape the teacher's reference stack
// (aws-sdk-go-v2) expects from config.LoadDefaultConfig, but with discovery
// of ambient credential sources (env vars, shared config, IMDS) disabled:
// the only credential source this daemon trusts is the metadata service.
func LoadAWSConfig(ctx context.Context, region string, creds Credentials) (aws.Config, error) {
	provider := credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
	)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(provider),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	return cfg, nil
}
