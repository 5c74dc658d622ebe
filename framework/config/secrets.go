package config

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Secret environment variable names. Values are never stored on Config:
// validation checks presence only, and adapters call Secret at the moment
// they construct a client, keeping credentials out of long-lived state.
const (
	SecretAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	SecretAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	SecretAtlasPublicKey     = "MONGODB_PUBLIC_KEY"
	SecretAtlasPrivateKey    = "MONGODB_PRIVATE_KEY"
	SecretSnowflakePassword  = "SNOWFLAKE_PASSWORD"
)

// Secret reads a credential from the environment at the point of use.
// Error messages name the variable, never its value.
func Secret(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", errors.Errorf("secret %s is not set", name)
	}

	return v, nil
}

// RequireSecrets verifies presence without retaining the values.
func RequireSecrets(names ...string) error {
	var merr *multierror.Error

	for _, name := range names {
		if _, err := Secret(name); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return merr.ErrorOrNil()
}
