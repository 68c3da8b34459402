package rdmaqueue

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NilError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(c Config) Config
		wantErr bool
	}{
		{"zero RecvWRs", func(c Config) Config { c.RecvWRs = 0; return c }, true},
		{"zero SendWRs", func(c Config) Config { c.SendWRs = 0; return c }, true},
		{"CQElements too small", func(c Config) Config { c.CQElements = 1; return c }, true},
		{"zero WindowSize", func(c Config) Config { c.WindowSize = 0; return c }, true},
		{"zero BufferSize", func(c Config) Config { c.BufferSize = 0; return c }, true},
		{"zero PoolBuffers", func(c Config) Config { c.PoolBuffers = 0; return c }, true},
		{"PoolBuffers below RecvWRs", func(c Config) Config { c.PoolBuffers = c.RecvWRs - 1; return c }, true},
		{"unchanged default", func(c Config) Config { return c }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(base).Validate()
			if tt.wantErr {
				assert.Assert(t, err != nil)
			} else {
				assert.NilError(t, err)
			}
		})
	}
}
