package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"catalog_service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestHashPasswordCommand(t *testing.T) {
	hash, err := execute(t, "", "hash-password", "s3creto")
	require.NoError(t, err)
	assert.True(t, auth.NewPasswordHasher().Verify("s3creto", hash))

	hash, err = execute(t, "desde-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, auth.NewPasswordHasher().Verify("desde-stdin", hash))

	_, err = execute(t, "\n", "hash-password")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret-0123")

	token, err := execute(t, "", "token", "--uid", "ops", "--admin", "--ttl", "5m")
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: "cli-test-secret-0123", SessionTTL: time.Hour})
	require.NoError(t, err)
	claims, err := tokens.ParseCustom(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.Admin)
}

func TestSetupLogger(t *testing.T) {
	logger := setupLogger("debug", "text")
	assert.Equal(t, "debug", logger.GetLevel().String())

	logger = setupLogger("nonsense", "json")
	assert.Equal(t, "info", logger.GetLevel().String())
}
