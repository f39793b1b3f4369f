package beacon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/irai/beacon/fastlog"
)

const moduleSend = "send"

// DefaultPeriod is used when BroadcastConfig.Period is zero.
const DefaultPeriod = time.Second

// BroadcastConfig holds the broadcaster settings. It is copied by NewBroadcaster.
type BroadcastConfig struct {
	Period  time.Duration // interval between beacons; zero means DefaultPeriod
	Message []byte        // up to MaxMessageLen bytes
	Debug   bool
	Logger  *fastlog.Logger // nil means fastlog.Std
}

// Broadcaster sends the same beacon payload to the broadcast address on a fixed period.
type Broadcaster struct {
	period  time.Duration
	payload Payload
	debug   bool
	log     *fastlog.Logger
}

// NewBroadcaster encodes the message once. It fails with ErrMessageTooLong
// before any socket is touched.
func NewBroadcaster(config BroadcastConfig) (*Broadcaster, error) {
	payload, err := Encode(config.Message)
	if err != nil {
		return nil, err
	}
	b := &Broadcaster{period: config.Period, payload: payload, debug: config.Debug, log: config.Logger}
	if b.period <= 0 {
		b.period = DefaultPeriod
	}
	if b.log == nil {
		b.log = fastlog.Std
	}
	return b, nil
}

func (b *Broadcaster) Period() time.Duration { return b.period }
func (b *Broadcaster) Payload() Payload      { return b.payload }

// Run writes the beacon to the broadcast address then sleeps for the period,
// forever. It returns when a write fails or ctx is cancelled; there is no retry.
func (b *Broadcaster) Run(ctx context.Context, conn net.PacketConn) error {
	dst := &Addr{MAC: EthBroadcast}
	if b.debug {
		l := b.log.NewLine(moduleSend, "sending beacons").Duration("period", b.period).Int("len", b.payload.Len())
		if addr, ok := conn.LocalAddr().(*Addr); ok && addr != nil {
			l.MAC("src", addr.MAC)
		}
		l.Write()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := conn.WriteTo(b.payload, dst); err != nil {
			return fmt.Errorf("sendto failed: %w", err)
		}
		if b.debug {
			b.log.NewLine(moduleSend, "beacon sent").Struct(b.payload).Write()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.period):
		}
	}
}
