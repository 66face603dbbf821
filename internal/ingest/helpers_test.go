package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  two\n\nlines ", "two lines"},
		{"markup", "<div><p>Hello</p> <p>world</p></div>", "Hello world"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"scripts dropped", "<p>ok</p><style>p{}</style><script>x()</script>", "ok"},
		{"invalid utf8", "caf\xc3", "caf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "ñandú...", TruncateText("ñandú salvaje", 8))
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "mei.columbia.edu", extractDomain("https://WWW.mei.columbia.edu/funding?x=1"))
	assert.Equal(t, "", extractDomain(""))
}
