package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("ENV")
	os.Unsetenv("PIQI_FHIR_BASE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected default ENV 'development', got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default LOG_LEVEL 'info', got %q", cfg.LogLevel)
	}
	if cfg.PushEnabled() {
		t.Error("expected PushEnabled() false with no PIQI_FHIR_BASE")
	}
}

func TestLoad_FHIREndpoint(t *testing.T) {
	os.Setenv("PIQI_FHIR_BASE", "https://fhir.example.org/r4")
	defer os.Unsetenv("PIQI_FHIR_BASE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FHIRBase != "https://fhir.example.org/r4" {
		t.Errorf("expected FHIRBase set, got %q", cfg.FHIRBase)
	}
	if !cfg.PushEnabled() {
		t.Error("expected PushEnabled() true once PIQI_FHIR_BASE is set")
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() true")
	}
	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() false")
	}
}

func TestValidate_UserWithoutPass(t *testing.T) {
	c := &Config{FHIRUser: "svc-account"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when FHIRUser set without FHIRPass")
	}
}

func TestValidate_PassWithoutUser(t *testing.T) {
	c := &Config{FHIRPass: "secret"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when FHIRPass set without FHIRUser")
	}
}

func TestValidate_BothOrNeitherIsValid(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error with neither set: %v", err)
	}
	c = &Config{FHIRUser: "svc", FHIRPass: "secret"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error with both set: %v", err)
	}
}
