package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/coach/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &domain.Cursor{Date: time.Date(2025, time.April, 2, 18, 4, 5, 123, time.UTC), ID: "abc"}
	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.True(t, c.Date.Equal(decoded.Date))
	require.Equal(t, "abc", decoded.ID)
}

func TestDecodeCursorBlankAndInvalid(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)

	require.Empty(t, EncodeCursor(nil))

	_, err = DecodeCursor("%%%")
	require.Error(t, err)

	_, err = DecodeCursor("bm8tc2VwYXJhdG9y")
	require.Error(t, err)
}
