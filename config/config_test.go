package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"dev without gateway", Config{Env: "dev"}, ""},
		{"prod missing secret", Config{Env: "prod", Gateway: GatewayConfig{BaseURL: "https://pay.example.com"}}, "GATEWAY_SECRET"},
		{"prod missing url", Config{Env: "prod", Gateway: GatewayConfig{Secret: "s3cret"}}, "GATEWAY_URL"},
		{"test env is not dev", Config{Env: "test"}, "GATEWAY_SECRET"},
		{"prod complete", Config{Env: "prod", Gateway: GatewayConfig{BaseURL: "https://pay.example.com", Secret: "s3cret"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
