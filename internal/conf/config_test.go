package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	return &Settings{
		CDF: CDFSettings{Cluster: "westeurope-1", Project: "demo", TokenEnv: "CDF_TOKEN"},
		Migrate: MigrateSettings{
			ChunkSize:         1000,
			MaxQueueSize:      10,
			CapacityMargin:    0.1,
			RequestsPerSecond: 10,
			LogDir:            "logs",
		},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(s *Settings) {}, false},
		{"zero chunk size", func(s *Settings) { s.Migrate.ChunkSize = 0 }, true},
		{"negative queue size", func(s *Settings) { s.Migrate.MaxQueueSize = -1 }, true},
		{"margin of one", func(s *Settings) { s.Migrate.CapacityMargin = 1.0 }, true},
		{"zero rate limit", func(s *Settings) { s.Migrate.RequestsPerSecond = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIBaseURL(t *testing.T) {
	t.Parallel()

	c := CDFSettings{Cluster: "api"}
	assert.Equal(t, "https://api.cognitedata.com", c.APIBaseURL())

	c.BaseURL = "https://localhost:8080/"
	assert.Equal(t, "https://localhost:8080", c.APIBaseURL())
}
