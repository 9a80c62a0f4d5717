package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

// Secret providers
const (
	SecretProviderEnv   = "env"
	SecretProviderVault = "vault"
	SecretProviderAWS   = "aws"
)

// SecretManager retrieves a single secret value by key
type SecretManager interface {
	GetSecret(key string) (string, error)
}

// VaultSecretManager retrieves secrets from HashiCorp Vault
type VaultSecretManager struct {
	path   string
	client *api.Client
}

// NewVaultSecretManager creates a Vault client from the secrets config
func NewVaultSecretManager(config *Config) (*VaultSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: config.Secrets.Vault.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if config.Secrets.Vault.Token != "" {
		client.SetToken(config.Secrets.Vault.Token)
	} else if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	return &VaultSecretManager{
		path:   config.Secrets.Vault.Path,
		client: client,
	}, nil
}

// GetSecret reads key from the configured path. KV v2 responses nest the
// values under "data"; both layouts are accepted.
func (v *VaultSecretManager) GetSecret(key string) (string, error) {
	secret, err := v.client.Logical().Read(v.path)
	if err != nil {
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret not found at path %s", v.path)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %s not found in Vault secret", key)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key %s is not a string", key)
	}
	return strValue, nil
}

// AWSSecretManager retrieves secrets from AWS Secrets Manager
type AWSSecretManager struct {
	secretID string
	client   *secretsmanager.SecretsManager
}

// NewAWSSecretManager creates a Secrets Manager client from the secrets config
func NewAWSSecretManager(config *Config) (*AWSSecretManager, error) {
	awsCfg := &aws.Config{
		Region: aws.String(config.Secrets.AWS.Region),
	}
	if config.Secrets.AWS.AccessKey != "" && config.Secrets.AWS.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			config.Secrets.AWS.AccessKey,
			config.Secrets.AWS.SecretKey,
			"",
		)
	}
	if config.Secrets.AWS.Endpoint != "" {
		awsCfg.Endpoint = aws.String(config.Secrets.AWS.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &AWSSecretManager{
		secretID: config.Secrets.AWS.SecretID,
		client:   secretsmanager.New(sess),
	}, nil
}

// GetSecret reads key from a JSON secret. A secret that is not a JSON object
// is returned whole.
func (a *AWSSecretManager) GetSecret(key string) (string, error) {
	result, err := a.client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from AWS: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("AWS secret %s has no string value", a.secretID)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return *result.SecretString, nil
	}

	value, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("key %s not found in AWS secret", key)
	}
	return value, nil
}

// NewSecretManager creates the secret manager for the configured provider.
// The env provider has no manager; MONGODB_URI is read directly.
func NewSecretManager(config *Config) (SecretManager, error) {
	switch config.Secrets.Provider {
	case "", SecretProviderEnv:
		return nil, nil
	case SecretProviderVault:
		return NewVaultSecretManager(config)
	case SecretProviderAWS:
		return NewAWSSecretManager(config)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Secrets.Provider)
	}
}

// LoadSecrets fills the MongoDB URI from the secret provider. A URI set
// directly in the environment or config file takes precedence.
func LoadSecrets(config *Config) error {
	if config.MongoDB.URI != "" {
		return nil
	}

	manager, err := NewSecretManager(config)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	if manager == nil {
		return nil
	}
	return resolveSecrets(config, manager)
}

func resolveSecrets(config *Config, manager SecretManager) error {
	uri, err := manager.GetSecret(config.Secrets.Key)
	if err != nil {
		return fmt.Errorf("failed to load MongoDB URI from %s: %w", config.Secrets.Provider, err)
	}
	config.MongoDB.URI = uri
	return nil
}
