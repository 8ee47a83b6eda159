package identity

import (
	"testing"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash("user@example.com")
	require.NoError(t, err)
	h2, err := Hash("user@example.com")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, HashLength)
}

func TestHash_NormalizesCaseAndWhitespace(t *testing.T) {
	h1, err := Hash("A@B.com")
	require.NoError(t, err)
	h2, err := Hash("  a@b.com ")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestHash_DistinctEmails(t *testing.T) {
	h1, err := Hash("alice@example.com")
	require.NoError(t, err)
	h2, err := Hash("bob@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestHash_EmptyEmail(t *testing.T) {
	_, err := Hash("   ")
	assert.ErrorIs(t, err, common.ErrorInvalidEmail)
}

func TestBlobPath(t *testing.T) {
	h, err := Hash("user@example.com")
	require.NoError(t, err)

	path, err := BlobPath("user@example.com", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, h+"/report.pdf", path)
}

func TestBlobPath_SanitizesSeparators(t *testing.T) {
	h, err := Hash("user@example.com")
	require.NoError(t, err)

	path, err := BlobPath("user@example.com", "../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, h+"/.._etc_passwd", path)

	path, err = BlobPath("user@example.com", `dir\file.docx`)
	require.NoError(t, err)
	assert.Equal(t, h+"/dir_file.docx", path)
}

func TestOwnsAndStripPrefix(t *testing.T) {
	assert.True(t, Owns("abc123", "abc123/report.pdf"))
	assert.False(t, Owns("abc123", "def456/report.pdf"))
	// prefix match requires the separator, not just the leading characters
	assert.False(t, Owns("abc123", "abc123report.pdf"))

	assert.Equal(t, "report.pdf", StripPrefix("abc123", "abc123/report.pdf"))
	assert.Equal(t, "def456/report.pdf", StripPrefix("abc123", "def456/report.pdf"))
}
