package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	t.Parallel()
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.UserAgent)
	}
	if cfg.Catalog.URL != DefaultCatalogURL {
		t.Errorf("Catalog.URL = %q, want %q", cfg.Catalog.URL, DefaultCatalogURL)
	}
	if cfg.Mediator.BaseURL != DefaultMediatorURL {
		t.Errorf("Mediator.BaseURL = %q, want %q", cfg.Mediator.BaseURL, DefaultMediatorURL)
	}
	if cfg.Mediator.ClientType != "www" {
		t.Errorf("Mediator.ClientType = %q, want www", cfg.Mediator.ClientType)
	}
	if cfg.Languages.Primary != "E" || cfg.Languages.Secondary != "CHS" {
		t.Errorf("Languages = %q/%q, want E/CHS", cfg.Languages.Primary, cfg.Languages.Secondary)
	}
	if cfg.Fetch.MaxSubtitleBytes != 10<<20 {
		t.Errorf("Fetch.MaxSubtitleBytes = %d, want %d", cfg.Fetch.MaxSubtitleBytes, 10<<20)
	}
	if cfg.Mux.FFmpegPath != "ffmpeg" {
		t.Errorf("Mux.FFmpegPath = %q, want ffmpeg", cfg.Mux.FFmpegPath)
	}
	if cfg.Packager.Workers != 2 {
		t.Errorf("Packager.Workers = %d, want 2", cfg.Packager.Workers)
	}
	if cfg.Packager.Policy != "partial" {
		t.Errorf("Packager.Policy = %q, want partial", cfg.Packager.Policy)
	}
	if cfg.Publish.Provider != "localfs" {
		t.Errorf("Publish.Provider = %q, want localfs", cfg.Publish.Provider)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	var cfg Config
	cfg.Languages.Primary = "J"
	cfg.Packager.Workers = 8
	cfg.Packager.Policy = "abort"
	cfg.ApplyDefaults()

	if cfg.Languages.Primary != "J" {
		t.Errorf("Languages.Primary = %q, want J", cfg.Languages.Primary)
	}
	if cfg.Packager.Workers != 8 {
		t.Errorf("Packager.Workers = %d, want 8", cfg.Packager.Workers)
	}
	if cfg.Packager.Policy != "abort" {
		t.Errorf("Packager.Policy = %q, want abort", cfg.Packager.Policy)
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty uses default", "", time.Minute},
		{"valid", "90s", 90 * time.Second},
		{"invalid uses default", "soon", time.Minute},
		{"negative uses default", "-5s", time.Minute},
		{"zero uses default", "0s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseDuration("test.key", tt.value, time.Minute); got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetUserAgent_Default(t *testing.T) {
	t.Parallel()
	if got := GetUserAgent(); got == "" {
		t.Error("GetUserAgent returned an empty string")
	}
}
