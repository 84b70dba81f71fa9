package whatsapp

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

const (
	InitialDelay  = 2 * time.Second
	RecoveryPause = 3 * time.Second
	minDelay      = 2 * time.Second
	maxDelay      = 10 * time.Second
	maxLengthTerm = 8 * time.Second
)

var continuationWord = regexp.MustCompile(`(?i)^(also|oh|and|plus|btw|by the way|actually|one more thing|but|anyway)\b`)

// Pacer spaces follow-up messages so they read like someone typing.
type Pacer struct {
	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPacer() *Pacer {
	return &Pacer{rand: rand.Float64, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay is 2-3s, plus about 1s per 100 characters (at most 8s), plus 1.5-3s when the part
// opens with a continuation word, clamped to [2s, 10s].
func (p *Pacer) Delay(part string) time.Duration {
	d := between(p.rand(), 2*time.Second, 3*time.Second)

	lengthTerm := time.Duration(len([]rune(part))) * time.Second / 100
	d += min(lengthTerm, maxLengthTerm)

	if continuationWord.MatchString(strings.TrimSpace(part)) {
		d += between(p.rand(), 1500*time.Millisecond, 3*time.Second)
	}
	return max(minDelay, min(d, maxDelay))
}

func between(r float64, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(r*float64(hi-lo))
}

func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}
