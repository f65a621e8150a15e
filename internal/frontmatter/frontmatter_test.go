package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantHeader string
		wantBody   string
		wantHad    bool
		wantNL     string
	}{
		{"no header", "# Title\n", "", "# Title\n", false, "\n"},
		{"header", "---\ntitle: BMI\n---\n<p>x</p>\n", "title: BMI\n", "<p>x</p>\n", true, "\n"},
		{"empty header", "---\n---\nbody", "", "body", true, "\n"},
		{"crlf", "---\r\ntitle: BMI\r\n---\r\nbody\r\n", "title: BMI\r\n", "body\r\n", true, "\r\n"},
		{"closed at eof", "---\ntitle: BMI\n---", "title: BMI\n", "", true, "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, body, had, nl, err := Split([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHad, had)
			assert.Equal(t, tt.wantHeader, string(header))
			assert.Equal(t, tt.wantBody, string(body))
			assert.Equal(t, tt.wantNL, nl)
		})
	}
}

func TestSplit_MissingClosingDelimiter(t *testing.T) {
	_, _, had, _, err := Split([]byte("---\ntitle: x\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
	assert.False(t, had)
}

func TestDecode(t *testing.T) {
	var header struct {
		Title    string `yaml:"title"`
		Category string `yaml:"category"`
	}
	body, had, err := Decode([]byte("---\ntitle: Loan\ncategory: finance\n---\n<p>body</p>"), &header)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, "Loan", header.Title)
	assert.Equal(t, "finance", header.Category)
	assert.Equal(t, "<p>body</p>", string(body))
}

func TestDecode_InvalidYAML(t *testing.T) {
	var header map[string]any
	_, _, err := Decode([]byte("---\ntitle: [\n---\nbody"), &header)
	require.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	type stub struct {
		Title string `yaml:"title"`
	}
	out, err := Encode(stub{Title: "Age Calculator"}, []byte("<p>todo</p>\n"))
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Age Calculator\n---\n<p>todo</p>\n", string(out))

	var back stub
	body, _, err := Decode(out, &back)
	require.NoError(t, err)
	assert.Equal(t, "Age Calculator", back.Title)
	assert.Equal(t, "<p>todo</p>\n", string(body))
}
