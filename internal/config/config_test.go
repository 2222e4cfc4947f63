package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "8181", c.Port)
				assert.Equal(t, BackendLocal, c.Backend)
				assert.Equal(t, 0.1, c.ScoreThreshold)
				assert.Equal(t, 960, c.DisplayWidth)
				assert.Equal(t, 720, c.DisplayHeight)
				assert.Equal(t, 60, c.FPS)
				assert.Equal(t, 10*time.Second, c.RemoteTimeout)
			},
		},
		{
			name: "reads prefixed variables",
			envVars: map[string]string{
				"FACEMOJI_PORT":            "9000",
				"FACEMOJI_BACKEND":         "remote",
				"FACEMOJI_REMOTE_URL":      "http://inference:7000",
				"FACEMOJI_SCORE_THRESHOLD": "0.4",
				"FACEMOJI_GO_ENV":          "production",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "9000", c.Port)
				assert.Equal(t, BackendRemote, c.Backend)
				assert.Equal(t, "http://inference:7000", c.RemoteURL)
				assert.Equal(t, 0.4, c.ScoreThreshold)
				assert.True(t, c.IsProduction())
			},
		},
		{
			name: "reads rekognition and mqtt settings",
			envVars: map[string]string{
				"FACEMOJI_BACKEND":     "rekognition",
				"FACEMOJI_AWS_REGION":  "eu-west-1",
				"FACEMOJI_MQTT_BROKER": "tcp://broker:1883",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, BackendRekognition, c.Backend)
				assert.Equal(t, "eu-west-1", c.AWSRegion)
				assert.Equal(t, "tcp://broker:1883", c.MQTTBroker)
				assert.Equal(t, "facemoji/expressions", c.MQTTTopic)
			},
		},
		{
			name:    "rejects unknown backend",
			envVars: map[string]string{"FACEMOJI_BACKEND": "cloud"},
			wantErr: true,
		},
		{
			name:    "rejects threshold above one",
			envVars: map[string]string{"FACEMOJI_SCORE_THRESHOLD": "1.5"},
			wantErr: true,
		},
		{
			name:    "rejects malformed number",
			envVars: map[string]string{"FACEMOJI_FPS": "fast"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
