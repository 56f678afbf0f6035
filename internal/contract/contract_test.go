package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixture(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "riskalgo-consumer.json"))
	require.NoError(t, err)

	assert.Equal(t, "InsulinPumpUI", c.Consumer.Name)
	assert.Equal(t, "RiskAlgoService", c.Provider.Name)
	assert.Equal(t, "3.0.0", c.Metadata.PactSpecification.Version)
	require.Len(t, c.Interactions, 3)

	bolus := c.Interactions[0]
	assert.Equal(t, "a request for a bolus calculation", bolus.Description)
	assert.Equal(t, "the algorithm service is healthy", bolus.ProviderState)
	assert.Equal(t, "POST", bolus.Request.Method)
	assert.Equal(t, "/calculate/bolus", bolus.Request.Path)
	assert.Equal(t, 200, bolus.Response.Status)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does-not-exist.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse pact")
}

func TestValidate(t *testing.T) {
	base := func() *Contract {
		c, err := Load(filepath.Join("testdata", "riskalgo-consumer.json"))
		require.NoError(t, err)
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Contract)
		want   string
	}{
		{"missing consumer name", func(c *Contract) { c.Consumer.Name = "" }, "missing consumer or provider name"},
		{"missing provider name", func(c *Contract) { c.Provider.Name = "" }, "missing consumer or provider name"},
		{"no interactions", func(c *Contract) { c.Interactions = nil }, "no interactions"},
		{"empty description", func(c *Contract) { c.Interactions[0].Description = "" }, "has no description"},
		{"missing method", func(c *Contract) { c.Interactions[1].Request.Method = "" }, "incomplete request"},
		{"missing path", func(c *Contract) { c.Interactions[1].Request.Path = "" }, "incomplete request"},
		{"zero status", func(c *Contract) { c.Interactions[2].Response.Status = 0 }, "no response status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMinArrayLength(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "riskalgo-consumer.json"))
	require.NoError(t, err)

	bolus := c.Interactions[0]
	assert.Equal(t, 1, bolus.MinArrayLength("$.warnings"))
	assert.Equal(t, 0, bolus.MinArrayLength("$.recommended_bolus_units"), "plain type matcher carries no min")
	assert.Equal(t, 0, bolus.MinArrayLength("$.nope"))

	basal := c.Interactions[1]
	assert.Equal(t, 2, basal.RequestMinArrayLength("$.glucose_readings"))
	assert.Equal(t, 0, basal.RequestMinArrayLength("$.current_basal_rate"))

	health := c.Interactions[2]
	assert.Equal(t, 0, health.MinArrayLength("$.anything"), "no rules at all")
	assert.Equal(t, 0, health.RequestMinArrayLength("$.anything"))
}
