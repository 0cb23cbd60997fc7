package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsMissingComponents(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"16", Version{16, 0, 0}},
		{"3.43", Version{3, 43, 0}},
		{"10.2.0", Version{10, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first, err := Normalize("3.43")
	require.NoError(t, err)
	assert.Equal(t, "3.43.0", first)

	second, err := Normalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompareNumericNotString(t *testing.T) {
	a, _ := Parse("10.2.0")
	b, _ := Parse("9.9.9")
	assert.Equal(t, 1, Compare(a, b), "10.2.0 must be greater than 9.9.9 numerically")
}

func TestCompareTrailingZeroTolerance(t *testing.T) {
	a, _ := Parse("3.43")
	b, _ := Parse("3.43.0")
	assert.Equal(t, 0, Compare(a, b))
}

func TestSortDescending(t *testing.T) {
	vs := []Version{{9, 9, 9}, {10, 2, 0}, {10, 1, 5}}
	SortDescending(vs)
	assert.Equal(t, []Version{{10, 2, 0}, {10, 1, 5}, {9, 9, 9}}, vs)
}

func TestMajorMinorMatch(t *testing.T) {
	a, _ := Parse("16.4.2")
	b, _ := Parse("16.0.0")
	assert.True(t, MajorMinorMatch(a, b))

	c, _ := Parse("15.9.9")
	assert.False(t, MajorMinorMatch(a, c))
}
