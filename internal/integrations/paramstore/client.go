// Package paramstore reads secrets such as the AI service credential from
// AWS Systems Manager Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter. Consumers depend on it
// rather than on *Client so they stay testable without AWS.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api       ssmAPI
	plaintext bool
}

type Option func(*Client)

// WithoutDecryption reads SecureString parameters in their encrypted form.
func WithoutDecryption() Option {
	return func(c *Client) {
		c.plaintext = true
	}
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := !c.plaintext
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// Name joins a hierarchy prefix and a key into a parameter name, e.g.
// ("/requirements-agent/", "openai-key") -> "/requirements-agent/openai-key".
func Name(prefix, key string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if prefix == "" {
		return "/" + key
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix + "/" + key
}
