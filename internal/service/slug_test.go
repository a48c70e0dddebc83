package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Already-hyphenated title", "already-hyphenated-title"},
		{"Mixed_CASE with_underscores", "mixed-case-with-underscores"},
		{"Symbols! @#$ removed?", "symbols-removed"},
		{"Numbers 123 kept", "numbers-123-kept"},
		{"multiple   spaces", "multiple-spaces"},
		{"???", "post"},
		{"", "post"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Slugify(tc.title), "title %q", tc.title)
	}
}
