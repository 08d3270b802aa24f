package kibi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:                         "0 bytes",
		1023:                      "1023 bytes",
		1024:                      "1 KB",
		35 * 1024 * 1024:          "35 MB",
		1023 * 1024 * 1024:        "1023 MB",
		1024 * 1024 * 1024:        "1 GB",
		1024 * 1024 * 1024 * 1024: "1 TB",
		1 << 50:                   "1 PB",
		1 << 60:                   "1024 PB",
	}
	for in, expect := range cases {
		require.Equal(t, expect, FormatBytes(in))
	}
	require.Equal(t, "1.5 MB", FormatMegabytes(1536*1024))
}

func TestParseBytes(t *testing.T) {
	goodParse := func(expected int64, s string) {
		val, err := ParseBytes(s)
		require.NoError(t, err)
		require.Equal(t, expected, val)
	}

	goodParse(0, "0")
	goodParse(50, "50 bytes")
	goodParse(50*1024, "50 KB")
	goodParse(50*1024, "50k")
	goodParse(512*1024*1024, "512 MB")
	goodParse(2*1024*1024*1024, "2g")
	goodParse(50<<40, "50 tb")

	badParse := func(s string) {
		_, err := ParseBytes(s)
		require.Error(t, err)
	}

	badParse("")
	badParse("MB")
	badParse("50 pbz")
	badParse("50.1")
}
