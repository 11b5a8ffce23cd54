package utils

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
)

// SleepContext sleeps for given duration. If the context closes in the
// meantime, it returns immediately with a context.Canceled error.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Canceled
	case <-t.C:
		return nil
	}
}

// DisplayASCII represents a value as ascii if it only contains safe ascii characters.
// If it contains unsafe characters, these are replaced by '.' and a hex
// representation is added to the output.
func DisplayASCII(b []byte) string {
	ret := make([]byte, len(b))
	unsafe := false
	for i, ch := range b {
		if ch < 32 || ch > 126 {
			ret[i] = '.'
			unsafe = true
		} else {
			ret[i] = ch
		}
	}
	if unsafe || len(b) <= 8 {
		return fmt.Sprintf("%s [% 0x]", string(ret), b)
	}
	return string(ret)
}

// DisplayKey represents a storage key as hex, with the shared map prefix
// separated from the index suffix.
func DisplayKey(key []byte, prefixLen int) string {
	if prefixLen <= 0 || prefixLen > len(key) {
		return "0x" + hex.EncodeToString(key)
	}
	return fmt.Sprintf("0x%s|%s",
		hex.EncodeToString(key[:prefixLen]), hex.EncodeToString(key[prefixLen:]))
}

// TimeDiff returns the difference between two times, rounded to milliseconds.
func TimeDiff(t1, t0 time.Time) time.Duration {
	return t1.Sub(t0).Round(time.Millisecond)
}
