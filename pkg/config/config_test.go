package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStoreType(t *testing.T) {
	testCases := []struct {
		input   string
		want    StoreType
		wantErr bool
	}{
		{"memory", StoreTypeMemory, false},
		{"badger", StoreTypeBadger, false},
		{"redis", StoreTypeRedis, false},
		{"", "", true},
		{"postgres", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseStoreType(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("memory needs nothing", func(t *testing.T) {
		cfg := &Config{StoreType: StoreTypeMemory}
		require.NoError(t, cfg.Validate())
	})

	t.Run("badger requires data dir", func(t *testing.T) {
		cfg := &Config{StoreType: StoreTypeBadger}
		require.Error(t, cfg.Validate())

		cfg.DataDir = "/var/lib/lockroot"
		require.NoError(t, cfg.Validate())
	})

	t.Run("redis requires address", func(t *testing.T) {
		cfg := &Config{StoreType: StoreTypeRedis}
		require.Error(t, cfg.Validate())

		cfg.RedisAddress = "localhost:6379"
		require.NoError(t, cfg.Validate())
	})

	t.Run("redis db range", func(t *testing.T) {
		cfg := &Config{StoreType: StoreTypeRedis, RedisAddress: "localhost:6379", RedisDB: 16}
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown store type", func(t *testing.T) {
		cfg := &Config{StoreType: StoreType("etcd")}
		require.Error(t, cfg.Validate())
	})
}
