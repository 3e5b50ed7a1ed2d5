package app_config

import (
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"
)

// AppConfig holds the tunables for the sync runtime.
type AppConfig struct {
	// Buffered capacity of each event bus subscription.
	EVENT_BUS_BUFFER_SIZE int64 `yaml:"EVENT_BUS_BUFFER_SIZE"`
	// Run the maintenance sweep every other interval.
	SWEEP_EVERY_SECOND int64 `yaml:"SWEEP_EVERY_SECOND"`
	// Per-operation deadline for remote store calls, in milliseconds.
	STORE_OP_TIMEOUT_MS int64 `yaml:"STORE_OP_TIMEOUT_MS"`
	// Address the HTTP server binds to, e.g. ":8080".
	SERVER_ADDR string `yaml:"SERVER_ADDR"`
	// Flush usage counters to statsd every other interval.
	REPORT_EVERY_SECOND int64 `yaml:"REPORT_EVERY_SECOND"`
	// Skip the postgres archive sink entirely and discard sweep victims.
	DISABLE_ARCHIVE bool `yaml:"DISABLE_ARCHIVE"`
}

func ParseAppConfig(path string) AppConfig {
	c := AppConfig{}
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("yamlFile. get err: ", err.Error())
	}
	err = yaml.Unmarshal(yamlFile, &c)
	if err != nil {
		log.Fatal("Unmarshal: ", err)
	}
	return c
}

// DefaultAppConfig is used when no config file is supplied on the command
// line.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		EVENT_BUS_BUFFER_SIZE: 64,
		SWEEP_EVERY_SECOND:    3600,
		STORE_OP_TIMEOUT_MS:   5000,
		SERVER_ADDR:           ":8080",
		REPORT_EVERY_SECOND:   60,
	}
}
