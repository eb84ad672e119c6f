package chartcrafter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartcrafter/chartcrafter"
)

func TestMasterKeyAuthorizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		token string
		want  chartcrafter.Decision
	}{
		{name: "match", key: "master", token: "master", want: chartcrafter.Grant},
		{name: "mismatch", key: "master", token: "other", want: chartcrafter.Deny},
		{name: "no token", key: "master", token: "", want: chartcrafter.NotApplicable},
		{name: "no key configured", key: "", token: "master", want: chartcrafter.NotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := chartcrafter.MasterKeyAuthorizer{Key: tt.key}
			got := a.Authorize(chartcrafter.Credentials{BearerToken: tt.token}, chartcrafter.ChartRecord{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPasswordAuthorizer(t *testing.T) {
	hasher := chartcrafter.NewHasher(chartcrafter.TestHashConfig())
	hash, err := hasher.Hash("Abc123def456")
	require.NoError(t, err)

	a := chartcrafter.PasswordAuthorizer{Hasher: hasher}

	tests := []struct {
		name     string
		password string
		record   chartcrafter.ChartRecord
		want     chartcrafter.Decision
	}{
		{name: "hash match", password: "Abc123def456", record: chartcrafter.ChartRecord{PasswordHash: hash}, want: chartcrafter.Grant},
		{name: "hash mismatch", password: "wrong", record: chartcrafter.ChartRecord{PasswordHash: hash}, want: chartcrafter.Deny},
		{name: "legacy match", password: "legacyPass12", record: chartcrafter.ChartRecord{LegacyPassword: "legacyPass12"}, want: chartcrafter.Grant},
		{name: "legacy mismatch", password: "nope", record: chartcrafter.ChartRecord{LegacyPassword: "legacyPass12"}, want: chartcrafter.Deny},
		{name: "no password supplied", password: "", record: chartcrafter.ChartRecord{PasswordHash: hash}, want: chartcrafter.NotApplicable},
		{name: "record without password", password: "x", record: chartcrafter.ChartRecord{}, want: chartcrafter.NotApplicable},
		{name: "corrupt hash", password: "x", record: chartcrafter.ChartRecord{PasswordHash: "garbage"}, want: chartcrafter.Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Authorize(chartcrafter.Credentials{Password: tt.password}, tt.record)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorize(t *testing.T) {
	record := chartcrafter.ChartRecord{LegacyPassword: "pw"}
	authorizers := []chartcrafter.Authorizer{
		chartcrafter.MasterKeyAuthorizer{Key: "master"},
		chartcrafter.PasswordAuthorizer{Hasher: chartcrafter.NewHasher(chartcrafter.TestHashConfig())},
	}

	t.Run("master key regardless of password", func(t *testing.T) {
		err := chartcrafter.Authorize(chartcrafter.Credentials{BearerToken: "master", Password: "wrong"}, record, authorizers...)
		assert.NoError(t, err)
	})

	t.Run("password alone", func(t *testing.T) {
		err := chartcrafter.Authorize(chartcrafter.Credentials{Password: "pw"}, record, authorizers...)
		assert.NoError(t, err)
	})

	t.Run("wrong bearer falls through to password", func(t *testing.T) {
		err := chartcrafter.Authorize(chartcrafter.Credentials{BearerToken: "bad", Password: "pw"}, record, authorizers...)
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		err := chartcrafter.Authorize(chartcrafter.Credentials{Password: "nope"}, record, authorizers...)
		assert.ErrorIs(t, err, chartcrafter.ErrInvalidCredential)
		assert.ErrorIs(t, err, chartcrafter.ErrUnauthorized)
	})

	t.Run("no credentials", func(t *testing.T) {
		err := chartcrafter.Authorize(chartcrafter.Credentials{}, record, authorizers...)
		assert.ErrorIs(t, err, chartcrafter.ErrCredentialRequired)
		assert.ErrorIs(t, err, chartcrafter.ErrUnauthorized)
	})
}
