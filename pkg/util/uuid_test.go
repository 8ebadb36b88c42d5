package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashUUID_Stable(t *testing.T) {
	a, err := HashUUID([]string{"phantom", "series", "1"})
	require.NoError(t, err)
	b, err := HashUUID([]string{"phantom", "series", "1"})
	require.NoError(t, err)
	c, err := HashUUID([]string{"phantom", "series", "2"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHashUUID_Unmarshalable(t *testing.T) {
	_, err := HashUUID(make(chan int))
	assert.Error(t, err)
}
