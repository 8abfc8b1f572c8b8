package uploads

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeySanitises(t *testing.T) {
	key := NewKey("../../etc/My Report (final).pdf")
	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.True(t, strings.HasSuffix(key, "/My_Report_final_.pdf"), key)
	assert.True(t, ValidKey(key))

	assert.True(t, strings.HasSuffix(NewKey("..."), "/file"))
}

func TestValidKey(t *testing.T) {
	assert.False(t, ValidKey("avatars/123/x.png"))
	assert.False(t, ValidKey("submissions/not-a-uuid/x.png"))
	assert.False(t, ValidKey("submissions/0b6b1f7e-3c3a-4f7e-9d55-6f0d3f7b8f10/"))
	assert.False(t, ValidKey("submissions/0b6b1f7e-3c3a-4f7e-9d55-6f0d3f7b8f10/../x"))
	assert.True(t, ValidKey("submissions/0b6b1f7e-3c3a-4f7e-9d55-6f0d3f7b8f10/x.png"))
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("application/pdf"))
	assert.True(t, Allowed("text/plain; charset=utf-8"))
	assert.False(t, Allowed("application/x-msdownload"))
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		head     string
		declared string
		want     string
		wantErr  bool
	}{
		{name: "pdf", head: "%PDF-1.4\n", declared: "application/pdf", want: "application/pdf"},
		{name: "png", head: "\x89PNG\r\n\x1a\n\x00\x00", declared: "image/png", want: "image/png"},
		{name: "zip declared by windows", head: "PK\x03\x04rest", declared: "application/x-zip-compressed", want: "application/zip"},
		{name: "text", head: "release notes", declared: "text/plain", want: "text/plain; charset=utf-8"},
		{name: "executable posing as pdf", head: "MZ\x90\x00\x03", declared: "application/pdf", wantErr: true},
		{name: "html posing as text", head: "<html><script>", declared: "text/plain", wantErr: true},
		{name: "png posing as pdf", head: "\x89PNG\r\n\x1a\n\x00\x00", declared: "application/pdf", wantErr: true},
		{name: "declared type not allowed", head: "%PDF-1.4", declared: "application/x-msdownload", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff([]byte(tt.head), tt.declared)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
