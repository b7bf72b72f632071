package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, [][]string{
		{"PR Number", "Vendor", "Amount"},
		{"PR-1", "Acme, Inc.", "15000.00"},
	})
	require.NoError(t, err)

	assert.Equal(t, "PR Number,Vendor,Amount\nPR-1,\"Acme, Inc.\",15000.00\n", buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Empty(t, buf.String())
}
