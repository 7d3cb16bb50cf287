package util

import (
	"errors"
	"math"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestWrapErrorf(t *testing.T) {
	orig := errors.New("boom")
	err := WrapErrorf(orig, ErrNotFound, "event %s", "abc")

	var coded *Error
	assert.True(t, errors.As(err, &coded))
	assert.Equal(t, ErrNotFound, coded.Code())
	assert.ErrorIs(t, err, orig)
	assert.Equal(t, "event abc: boom", err.Error())
}

func TestFirstNonBlank(t *testing.T) {
	testCases := []struct {
		name   string
		values []string
		want   string
	}{
		{name: "first wins", values: []string{"a", "b"}, want: "a"},
		{name: "skips blank", values: []string{"", "  ", "c"}, want: "c"},
		{name: "all blank", values: []string{"", " "}, want: ""},
		{name: "none", values: nil, want: ""},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstNonBlank(tt.values...))
		})
	}
}

func TestMapboxTokenFallbacks(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("MAPBOX_TOKEN", " ")
	viper.Set("MAP_BOX_TOKEN", "pk.fallback")
	assert.Equal(t, "pk.fallback", MapboxToken())

	viper.Set("MAPBOX_TOKEN", "pk.primary")
	assert.Equal(t, "pk.primary", MapboxToken())
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1.5))
	assert.False(t, IsFinite(math.Inf(1)))
	assert.False(t, IsFinite(math.NaN()))
}
