package nimbusclient

import (
	"fmt"
	"strings"

	"github.com/nimbus-io/nimbus-client/internal/client"
	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

const defaultClientName = "default"

// New creates a standalone Nimbus API client from config. Validation happens
// here, eagerly; an invalid config never produces a client.
func New(config *nimbus.Config) (nimbus.Client, error) {
	if config == nil {
		return nil, nimbus.ErrConfigRequired
	}

	normalizeEndpoint(config)

	client, err := client.New(defaultClientName, config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// normalizeEndpoint trims trailing slashes and defaults the scheme to https.
func normalizeEndpoint(config *nimbus.Config) {
	endpoint := strings.TrimSuffix(config.APIEndpoint, "/")
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	config.APIEndpoint = endpoint
}
