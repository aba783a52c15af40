package nimbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()

		var config *nimbus.Config

		err := config.Validate()
		require.Error(t, err)
		assert.True(t, nimbus.IsConfigError(err))
	})

	t.Run("missing endpoint", func(t *testing.T) {
		t.Parallel()

		err := (&nimbus.Config{}).Validate()
		require.Error(t, err)

		var cfgErr *nimbus.ConfigError

		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "api_endpoint", cfgErr.Field)
	})

	t.Run("throttle threshold out of range", func(t *testing.T) {
		t.Parallel()

		config := &nimbus.Config{
			APIEndpoint:       "https://api.example.com",
			ThrottleThreshold: 1.5,
		}

		err := config.Validate()
		require.Error(t, err)

		var cfgErr *nimbus.ConfigError

		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "throttle_threshold", cfgErr.Field)
	})

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		config := &nimbus.Config{
			APIEndpoint:       "https://api.example.com",
			APIToken:          "token",
			RetryMax:          3,
			RetryWaitMin:      time.Second,
			ThrottleThreshold: 0.2,
		}

		require.NoError(t, config.Validate())
	})
}

func TestConfig_RedactedYAML(t *testing.T) {
	t.Parallel()

	config := &nimbus.Config{
		APIEndpoint: "https://api.example.com",
		APIToken:    "super-secret",
		RetryMax:    3,
	}

	out, err := config.RedactedYAML()
	require.NoError(t, err)
	assert.Contains(t, out, "https://api.example.com")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "super-secret")
	// Redaction must not touch the original.
	assert.Equal(t, "super-secret", config.APIToken)
}
