package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpFilesOrderedWithoutDown(t *testing.T) {
	names, err := UpFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"0001_create_pledges.sql",
		"0002_create_vault_status.sql",
		"0003_create_audit_log.sql",
	}, names)
}

func TestUpFilesAreEmbedded(t *testing.T) {
	names, err := UpFiles()
	require.NoError(t, err)

	for _, name := range names {
		content, err := files.ReadFile(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, content, name)
	}
}
