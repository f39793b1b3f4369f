package beacon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"time"

	"github.com/irai/beacon/fastlog"
)

const moduleRecv = "recv"

// DefaultPattern matches any beacon message.
const DefaultPattern = ".*$"

// ListenConfig holds the listener settings. It is copied by NewListener.
type ListenConfig struct {
	// Timeout is the total time to wait for a matching beacon. Zero waits
	// forever and reports every match instead of returning after the first.
	Timeout time.Duration
	Pattern string    // empty means DefaultPattern
	Out     io.Writer // matched text is written here; nil means os.Stdout
	Debug   bool
	Logger  *fastlog.Logger // nil means fastlog.Std
}

// Listener waits for beacons and writes the part of each message that matches a pattern.
type Listener struct {
	timeout time.Duration
	pattern string
	re      *regexp.Regexp
	out     io.Writer
	debug   bool
	log     *fastlog.Logger
}

// CompilePattern compiles pattern case-insensitive with ^ and $ matching at line
// boundaries. The leftmost-longest match is selected.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %s", ErrInvalidPattern, pattern, err)
	}
	re.Longest()
	return re, nil
}

// NewListener compiles the pattern. It fails with ErrInvalidPattern before any socket is touched.
func NewListener(config ListenConfig) (*Listener, error) {
	re, err := CompilePattern(config.Pattern)
	if err != nil {
		return nil, err
	}
	l := &Listener{timeout: config.Timeout, pattern: config.Pattern, re: re, out: config.Out, debug: config.Debug, log: config.Logger}
	if l.pattern == "" {
		l.pattern = DefaultPattern
	}
	if l.timeout < 0 {
		l.timeout = 0
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	if l.log == nil {
		l.log = fastlog.Std
	}
	return l, nil
}

func (l *Listener) Timeout() time.Duration { return l.timeout }
func (l *Listener) Pattern() string        { return l.pattern }

// Match returns the matched span of text.
func (l *Listener) Match(text string) (string, bool) {
	loc := l.re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}

// aLongTimeAgo is a non-zero time in the past used to unblock a pending read.
var aLongTimeAgo = time.Unix(1, 0)

// Run reads beacons from conn until a match is found.
//
// With a timeout, the deadline is fixed when Run starts and is not extended by
// ignored frames; Run returns nil after the first match or ErrTimeout once the
// deadline passes. Without a timeout Run writes every match and only returns on
// error or when ctx is cancelled.
//
// Malformed and non matching frames are skipped. A read shorter than MinFrameLen
// returns ErrFrameLen.
func (l *Listener) Run(ctx context.Context, conn net.PacketConn) error {
	if l.debug {
		l.log.NewLine(moduleRecv, "waiting for beacon").String("pattern", l.pattern).Duration("timeout", l.timeout).Write()
	}

	var deadline time.Time
	if l.timeout > 0 {
		deadline = time.Now().Add(l.timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("setReadDeadline error: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(aLongTimeAgo) })
	defer stop()

	buf := make([]byte, MaxPayloadLen)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return ErrTimeout
			}
			return fmt.Errorf("recvfrom failed: %w", err)
		}

		payload, err := Decode(buf[:n])
		switch {
		case errors.Is(err, ErrMalformedFrame):
			if l.debug {
				l.log.NewLine(moduleRecv, "ignoring invalid payload").Int("bytes", Payload(buf[:n]).Len()).Int("got", n).Write()
			}
			continue
		case err != nil:
			return fmt.Errorf("recvfrom failed got=%d: %w", n, err)
		}

		text := payload.Text()
		match, ok := l.Match(text)
		if !ok {
			if l.debug {
				line := l.log.NewLine(moduleRecv, "ignoring unexpected message").String("text", text)
				if a, ok := addr.(*Addr); ok && a != nil {
					line.MAC("src", a.MAC)
				}
				line.Write()
			}
			continue
		}

		if _, err := io.WriteString(l.out, match+"\n"); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
		if l.timeout > 0 {
			return nil
		}
	}
}
