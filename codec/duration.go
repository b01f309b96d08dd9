package codec

import (
	"context"
	"time"
)

// Duration returns a Codec for Go duration literals such as "1m30s".
func Duration() Codec[string, time.Duration] { return durationCodec{} }

type durationCodec struct{}

func (durationCodec) Decode(ctx context.Context, a string) (time.Duration, error) {
	d, err := time.ParseDuration(a)
	if err != nil {
		return 0, &FormatError{Format: "duration", Input: a, Err: err}
	}
	return d, nil
}

func (durationCodec) Encode(ctx context.Context, b time.Duration) (string, error) {
	return b.String(), nil
}
