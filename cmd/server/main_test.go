package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCmdBindsFlags(t *testing.T) {
	cmd, err := newCmd()
	require.NoError(t, err)

	for flag := range flagKeys {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestBindFlagsUnknownFlag(t *testing.T) {
	err := bindFlags(viper.New(), pflag.NewFlagSet("empty", pflag.ContinueOnError))
	assert.Error(t, err)
}

func TestBindFlagsOverrideDefaults(t *testing.T) {
	cmd, err := newCmd()
	require.NoError(t, err)
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9100", "--storage_type", "database"}))

	v := viper.New()
	require.NoError(t, bindFlags(v, cmd.Flags()))
	assert.Equal(t, 9100, v.GetInt("server.port"))
	assert.Equal(t, "database", v.GetString("storage.type"))
}
