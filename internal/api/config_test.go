package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirayuki/bilisync/internal/config"
)

func TestConfigHandler_Get_RedactsSecrets(t *testing.T) {
	cfg := &config.Config{
		Bilibili: config.BilibiliConfig{
			Credential: config.Credential{SESSDATA: "super-secret"},
			ProxyURL:   "http://proxy.internal:8080",
		},
	}
	h := &ConfigHandler{config: cfg}

	out, err := h.Get(context.Background(), &GetConfigInput{})
	require.NoError(t, err)
	assert.True(t, out.Body.Bilibili.CredentialSet)
	assert.Equal(t, redacted, out.Body.Bilibili.ProxyURL)
}

func TestConfigHandler_Get_NoProxyNoRedaction(t *testing.T) {
	cfg := &config.Config{}
	h := &ConfigHandler{config: cfg}

	out, err := h.Get(context.Background(), &GetConfigInput{})
	require.NoError(t, err)
	assert.False(t, out.Body.Bilibili.CredentialSet)
	assert.Empty(t, out.Body.Bilibili.ProxyURL)
}

func TestConfigHandler_Get_NotLoaded(t *testing.T) {
	h := &ConfigHandler{}
	_, err := h.Get(context.Background(), &GetConfigInput{})
	require.Error(t, err)
}
