package tweets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBatchSplitsOnDayMarkers(t *testing.T) {
	response := `[Day 0]
First day in the city. New desk, new keyboard, same ambition.

[Day 4]
Shipped my first contract fix today.
Small win, big feeling.

[Day 8]
Coffee with a stranger who turned out to be a founder.`

	candidates, err := ParseBatch(response)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	require.Equal(t, 0, candidates[0].Day)
	require.Equal(t, 4, candidates[1].Day)
	require.Equal(t, 8, candidates[2].Day)
	require.Equal(t, "Shipped my first contract fix today.\nSmall win, big feeling.", candidates[1].Content)
}

func TestParseBatchDiscardsPreamble(t *testing.T) {
	response := `Here are the posts you asked for:
[Day 12]
Actual content.`

	candidates, err := ParseBatch(response)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "Actual content.", candidates[0].Content)
}

func TestParseBatchSkipsEmptySections(t *testing.T) {
	response := `[Day 0]

[Day 4]
Something happened.`

	candidates, err := ParseBatch(response)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, 4, candidates[0].Day)
}

func TestParseBatchNoMarkersIsParseError(t *testing.T) {
	_, err := ParseBatch("just prose with no structure at all")
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestCleanupStripsArtifacts(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Update: shipped the thing", "shipped the thing"},
		{"Setback: lost the deal", "lost the deal"},
		{"[2025 | Age 22.5] real content", "real content"},
		{"[2025-03-01 | Age 22.2] dated content", "dated content"},
		{"**bold** and *soft* emphasis", "bold and soft emphasis"},
		{"  too   many    spaces  ", "too many spaces"},
		{"\"quoted post\"", "quoted post"},
		{"plain text stays", "plain text stays"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Cleanup(tc.in), "input %q", tc.in)
	}
}
