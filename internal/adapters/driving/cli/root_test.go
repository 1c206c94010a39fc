package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/services"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"monitor", "ingest", "bulk", "list", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestIngestCmd_RequiresArgs(t *testing.T) {
	err := ingestCmd.Args(ingestCmd, nil)
	assert.Error(t, err)
	assert.NoError(t, ingestCmd.Args(ingestCmd, []string{"2024utu"}))
}

func TestRefsFor(t *testing.T) {
	registry := services.NewSourceRegistry()

	refs := refsFor(registry, "ZTF", "MANGROVE")
	require.Len(t, refs, 2)
	assert.Equal(t, domain.SourceZTF, refs[0].ID)
	assert.Equal(t, domain.SourceMangrove, refs[1].ID)

	assert.Panics(t, func() { refsFor(registry, "NOPE") })
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseInterval("2s", time.Minute))
	assert.Equal(t, time.Minute, parseInterval("soon", time.Minute))
	assert.Equal(t, time.Minute, parseInterval("-5s", time.Minute))
}
