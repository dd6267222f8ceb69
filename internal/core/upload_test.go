package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUpload(t *testing.T) {
	in := "\xEF\xBB\xBFFirst Name,Email,Phone\n" +
		"Jane,jane@example.org,555-123-4567\n" +
		",,\n" +
		"John,john@example.org\n" +
		"Bad\xffByte,x@y.org,1\n"

	up, err := ReadUpload(strings.NewReader(in), "people.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"First Name", "Email", "Phone"}, up.Headers)
	require.Len(t, up.Rows, 3, "blank row skipped")
	assert.Len(t, up.Rows[1], 2, "ragged row kept as-is")
	assert.Equal(t, "Bad?Byte", up.Rows[2][0], "invalid UTF-8 replaced")
}

func TestReadUploadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxRows int
		wantIs  error
		wantErr string
	}{
		{"empty input", "", 0, ErrEmptyFile, "empty file"},
		{"row limit", "email\na@b.org\nc@d.org\ne@f.org\n", 2, nil, "file too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadUpload(strings.NewReader(tt.input), "x.csv", tt.maxRows)
			require.ErrorContains(t, err, tt.wantErr)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}
