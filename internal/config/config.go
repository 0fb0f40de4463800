// Package config loads the pipeline's runtime configuration via viper, the
// same .env + AutomaticEnv + explicit BindEnv pattern the teacher repo uses
// for its server configuration.
package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds everything the orchestrator needs to run a batch: where
// annotated bundles may be pushed, reference-data location, and logging mode.
// There is no network listener in this pipeline, so the teacher's PORT/TLS_*/
// AUTH_*/DATABASE_URL surface has no home here.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SrcEndpoint/DstEndpoint populate MessageHeader.source/destination.endpoint
	// when building the MessageHeader resource from MSH.
	SrcEndpoint string `mapstructure:"PIQI_SRC_ENDPOINT"`
	DstEndpoint string `mapstructure:"PIQI_DST_ENDPOINT"`

	// FHIRBase/FHIRUser/FHIRPass configure the optional upload of annotated
	// bundles to a remote FHIR server.
	FHIRBase string `mapstructure:"PIQI_FHIR_BASE"`
	FHIRUser string `mapstructure:"PIQI_FHIR_USER"`
	FHIRPass string `mapstructure:"PIQI_FHIR_PASS"`

	// RefDir is the directory internal/refdata resolves loinc.csv, cpt.csv,
	// and plausibility.yaml from when an explicit path isn't given.
	RefDir string `mapstructure:"PIQI_REF_DIR"`
}

// Load reads configuration from the environment (and an optional .env file),
// applying the pipeline's defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PIQI_SRC_ENDPOINT", "")
	v.SetDefault("PIQI_DST_ENDPOINT", "")
	v.SetDefault("PIQI_FHIR_BASE", "")
	v.SetDefault("PIQI_FHIR_USER", "")
	v.SetDefault("PIQI_FHIR_PASS", "")
	v.SetDefault("PIQI_REF_DIR", "")

	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("PIQI_SRC_ENDPOINT")
	v.BindEnv("PIQI_DST_ENDPOINT")
	v.BindEnv("PIQI_FHIR_BASE")
	v.BindEnv("PIQI_FHIR_USER")
	v.BindEnv("PIQI_FHIR_PASS")
	v.BindEnv("PIQI_REF_DIR")

	// Try reading .env, but don't fail if missing.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.IsDev() {
		log.Println("WARNING: running with ENV=development; verbose logging and relaxed defaults are active")
	}

	return cfg, nil
}

// IsDev reports whether the pipeline is configured for development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// PushEnabled reports whether enough configuration is present to attempt
// uploading annotated bundles to a FHIR server.
func (c *Config) PushEnabled() bool {
	return c.FHIRBase != ""
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.FHIRUser != "" && c.FHIRPass == "" {
		return fmt.Errorf("config: PIQI_FHIR_USER is set but PIQI_FHIR_PASS is empty")
	}
	if c.FHIRPass != "" && c.FHIRUser == "" {
		return fmt.Errorf("config: PIQI_FHIR_PASS is set but PIQI_FHIR_USER is empty")
	}
	return nil
}
