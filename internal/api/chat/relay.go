package chat

import (
	"context"
	"strings"
	"time"

	"github.com/FACorreiaa/go-trip-planner-ai/config"
)

const (
	defaultQuietPeriod   = 1500 * time.Millisecond
	defaultSettleDelay   = 300 * time.Millisecond
	defaultSafetyTimeout = 45 * time.Second
	chunkBuffer          = 64
)

// StreamFunc starts a model stream and calls onChunk for every token chunk in order.
type StreamFunc func(ctx context.Context, onChunk func(string)) error

type RelayResult struct {
	Text     string
	TimedOut bool
}

func withRelayDefaults(cfg config.RelayConfig) config.RelayConfig {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = defaultQuietPeriod
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.SafetyTimeout <= 0 {
		cfg.SafetyTimeout = defaultSafetyTimeout
	}
	return cfg
}

// Relay forwards chunks from start to emit on the calling goroutine, in generation order.
// The turn resolves once no chunk has arrived for QuietPeriod (or the stream returned)
// followed by SettleDelay, or when SafetyTimeout elapses. Chunks produced after
// resolution are dropped, so nothing reaches emit once Relay has returned.
func Relay(ctx context.Context, cfg config.RelayConfig, start StreamFunc, emit func(string) error) (RelayResult, error) {
	cfg = withRelayDefaults(cfg)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan string, chunkBuffer)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- start(streamCtx, func(c string) {
			select {
			case chunks <- c:
			case <-streamCtx.Done():
			}
		})
	}()

	var text strings.Builder
	safety := time.NewTimer(cfg.SafetyTimeout)
	defer safety.Stop()
	quiet := time.NewTimer(cfg.QuietPeriod)
	quiet.Stop()
	defer quiet.Stop()

	var (
		quietC    <-chan time.Time
		settleC   <-chan time.Time
		errC      = streamErr
		streamEnd bool
		failure   error
	)

	forward := func(c string) error {
		text.WriteString(c)
		return emit(c)
	}

	for {
		select {
		case c := <-chunks:
			if err := forward(c); err != nil {
				return RelayResult{Text: text.String()}, err
			}
			if !streamEnd {
				quiet.Reset(cfg.QuietPeriod)
				quietC = quiet.C
				settleC = nil
			}

		case <-quietC:
			quietC = nil
			settleC = time.After(cfg.SettleDelay)

		case err := <-errC:
			errC = nil
			streamEnd = true
			failure = err
			quietC = nil
			settleC = time.After(cfg.SettleDelay)

		case <-settleC:
			if streamEnd {
				// The producer has returned; whatever is buffered is all there is.
				for {
					select {
					case c := <-chunks:
						if err := forward(c); err != nil {
							return RelayResult{Text: text.String()}, err
						}
						continue
					default:
					}
					break
				}
			}
			return RelayResult{Text: text.String()}, failure

		case <-safety.C:
			return RelayResult{Text: text.String(), TimedOut: true}, nil

		case <-ctx.Done():
			return RelayResult{Text: text.String()}, ctx.Err()
		}
	}
}
