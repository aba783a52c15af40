package nimbusclient

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// FileConfig is the on-disk shape of a factory configuration file. Client
// configs live under the "clients" key, one entry per logical name.
type FileConfig struct {
	Clients map[string]*nimbus.Config `yaml:"clients"`
}

// LoadConfigFile reads a YAML, JSON, or TOML configuration file and returns
// the named client configurations it declares. Duration fields accept Go
// duration strings ("30s", "2m").
func LoadConfigFile(path string) (map[string]*nimbus.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig

	err := v.Unmarshal(&fileConfig, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	})
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return fileConfig.Clients, nil
}

// NewFactoryFromFile builds a factory from a configuration file.
func NewFactoryFromFile(path string, opts ...FactoryOption) (*Factory, error) {
	configs, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	return NewFactory(configs, opts...), nil
}
