package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

func TestFactoryCreate(t *testing.T) {
	f := NewFactory()

	p, err := f.Create(testConfig(types.ProviderSerper, "https://google.serper.dev"))
	require.NoError(t, err)
	assert.Equal(t, types.ProviderSerper, p.ID())
	assert.IsType(t, &SerperProvider{}, p)

	p, err = f.Create(testConfig(types.ProviderTavily, "https://api.tavily.com"))
	require.NoError(t, err)
	assert.IsType(t, &TavilyProvider{}, p)
}

func TestFactoryCreateUnknownProvider(t *testing.T) {
	f := NewFactory()

	_, err := f.Create(testConfig("duckduckgo", "https://example.com"))
	assert.ErrorIs(t, err, types.ErrProviderNotFound)
}

func TestFactoryCreateInvalidConfig(t *testing.T) {
	f := NewFactory()

	cfg := testConfig(types.ProviderSerper, "https://example.com")
	cfg.APIKey = ""
	_, err := f.Create(cfg)
	assert.ErrorIs(t, err, types.ErrMissingAPIKey)
}

func TestFactoryRegisterCustom(t *testing.T) {
	f := NewFactory()
	custom := types.ProviderID("custom")

	f.Register(custom, func(cfg *types.ProviderConfig) (Provider, error) {
		return &stubProvider{id: custom}, nil
	})

	p, err := f.Create(testConfig(custom, "https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, custom, p.ID())

	assert.Contains(t, f.ListProviders(), custom)
}

type stubProvider struct {
	id      types.ProviderID
	results []types.SearchResult
	err     error
	calls   int
}

func (s *stubProvider) Search(_ context.Context, _ string, _ *types.QueryPayload) ([]types.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubProvider) ID() types.ProviderID { return s.id }

func (s *stubProvider) Validate() error { return nil }
