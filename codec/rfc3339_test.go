package codec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRFC3339_Codec_Basic(t *testing.T) {
	c := TimeRFC3339()
	ctx := context.Background()

	in := "2025-01-01T00:00:00Z"
	got, err := c.Decode(ctx, in)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	out, err := c.Encode(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTimeRFC3339_NormalizesToUTC(t *testing.T) {
	c := TimeRFC3339()
	ctx := context.Background()

	got, err := c.Decode(ctx, "2025-01-01T09:00:00.500+09:00")
	require.NoError(t, err)
	out, err := c.Encode(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00.5Z", out)
}

func TestTimeRFC3339_Invalid(t *testing.T) {
	_, err := TimeRFC3339().Decode(context.Background(), "yesterday")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "rfc3339", fe.Format)
	assert.Equal(t, "yesterday", fe.Input)
}

func TestDuration_Codec(t *testing.T) {
	c := Duration()
	ctx := context.Background()

	d, err := c.Decode(ctx, "1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	s, err := c.Encode(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "1m30s", s)

	_, err = c.Decode(ctx, "soon")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "duration", fe.Format)
}
