package bootstrap

import (
	"github.com/kbukum/bookingplatform/config"
)

// Config is satisfied by any pointer to a struct embedding
// config.ServiceConfig, through its promoted methods. Service configs
// override ApplyDefaults and Validate and call the embedded versions first.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Database database.Config `yaml:"database" mapstructure:"database"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
