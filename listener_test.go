package beacon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/irai/beacon/fastlog"
)

// lineWriter sends each written line to a channel.
type lineWriter chan string

func (w lineWriter) Write(b []byte) (int, error) {
	w <- string(b)
	return len(b), nil
}

func mustPayload(msg string) []byte {
	p, err := Encode([]byte(msg))
	if err != nil {
		panic(err)
	}
	return pad(p)
}

func malformedPayload() []byte {
	b := make([]byte, MinFrameLen)
	b[0], b[1] = 0xbe, 0xac^0x50 // declares 80 bytes
	return b
}

func TestListener_Match(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		text      string
		wantMatch string
		wantOK    bool
	}{
		{name: "default", pattern: "", text: "Hello World", wantMatch: "Hello World", wantOK: true},
		{name: "explicit default", pattern: ".*$", text: "Hello World", wantMatch: "Hello World", wantOK: true},
		{name: "span", pattern: "wor.d", text: "Hello World", wantMatch: "World", wantOK: true},
		{name: "case", pattern: "HELLO", text: "hello world", wantMatch: "hello", wantOK: true},
		{name: "longest", pattern: "a|ab", text: "xabc", wantMatch: "ab", wantOK: true},
		{name: "line anchor", pattern: "^two$", text: "one\ntwo\nthree", wantMatch: "two", wantOK: true},
		{name: "dot stops at newline", pattern: "o.*", text: "one\ntwo", wantMatch: "one", wantOK: true},
		{name: "empty text", pattern: "", text: "", wantMatch: "", wantOK: true},
		{name: "no match", pattern: "router", text: "Hello World", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewListener(ListenConfig{Pattern: tt.pattern})
			if err != nil {
				t.Fatal("unexpected error", err)
			}
			got, ok := l.Match(tt.text)
			if ok != tt.wantOK || got != tt.wantMatch {
				t.Errorf("Match() = %q,%v want %q,%v", got, ok, tt.wantMatch, tt.wantOK)
			}
		})
	}
}

func TestNewListener(t *testing.T) {
	if _, err := NewListener(ListenConfig{Pattern: "a(b"}); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("NewListener() error = %v, want ErrInvalidPattern", err)
	}
	l, err := NewListener(ListenConfig{})
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if l.Pattern() != DefaultPattern || l.Timeout() != 0 {
		t.Errorf("NewListener() invalid defaults pattern=%s timeout=%s", l.Pattern(), l.Timeout())
	}
}

func TestListener_RunSingleShot(t *testing.T) {
	conn, client := NewBufferedConn()
	defer conn.Close()
	defer client.Close()

	out := &bytes.Buffer{}
	debug := &bytes.Buffer{}
	l, err := NewListener(ListenConfig{Timeout: time.Second * 5, Pattern: "wor.d", Out: out, Debug: true, Logger: fastlog.New(debug)})
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	go func() {
		for _, p := range [][]byte{malformedPayload(), mustPayload("no match here"), mustPayload("Hello World"), mustPayload("Another world")} {
			if _, err := client.WriteTo(p, nil); err != nil {
				return
			}
		}
	}()

	if err := l.Run(context.Background(), conn); err != nil {
		t.Fatal("unexpected error", err)
	}
	if got := out.String(); got != "World\n" {
		t.Errorf("Run() output = %q, want %q", got, "World\n")
	}
	logs := debug.String()
	for _, want := range []string{`msg="waiting for beacon" pattern=wor.d timeout=5s`, `msg="ignoring invalid payload" bytes=80 got=46`, `msg="ignoring unexpected message" text=no match here`} {
		if !strings.Contains(logs, want) {
			t.Errorf("Run() debug log missing %q in %q", want, logs)
		}
	}
}

func TestListener_RunTimeout(t *testing.T) {
	conn, client := NewBufferedConn()
	defer conn.Close()
	defer client.Close()

	timeout := time.Millisecond * 200
	l, err := NewListener(ListenConfig{Timeout: timeout, Out: io.Discard})
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	start := time.Now()
	err = l.Run(context.Background(), conn)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("Run() timed out early elapsed=%s", elapsed)
	}
}

func TestListener_RunTimeoutNotExtended(t *testing.T) {
	conn, client := NewBufferedConn()
	defer conn.Close()
	defer client.Close()

	timeout := time.Millisecond * 200
	l, err := NewListener(ListenConfig{Timeout: timeout, Pattern: "never", Out: io.Discard})
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	// keep feeding ignored frames well past the deadline
	go func() {
		for i := 0; i < 100; i++ {
			p := malformedPayload()
			if i%2 == 0 {
				p = mustPayload("ignored")
			}
			if _, err := client.WriteTo(p, nil); err != nil {
				return
			}
			time.Sleep(time.Millisecond * 20)
		}
	}()

	start := time.Now()
	err = l.Run(context.Background(), conn)
	elapsed := time.Since(start)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed < timeout || elapsed > timeout*4 {
		t.Errorf("Run() deadline extended by ignored frames elapsed=%s", elapsed)
	}
}

func TestListener_RunForever(t *testing.T) {
	conn, client := NewBufferedConn()
	defer conn.Close()
	defer client.Close()

	out := make(lineWriter, 4)
	l, err := NewListener(ListenConfig{Timeout: 0, Pattern: "host[0-9]", Out: out})
	if err != nil {
		t.Fatal("unexpected error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, conn) }()

	for _, msg := range []string{"HOST1 up", "something else", "host2 up"} {
		if _, err := client.WriteTo(mustPayload(msg), nil); err != nil {
			t.Fatal("unexpected error", err)
		}
	}
	for _, want := range []string{"HOST1\n", "host2\n"} {
		select {
		case got := <-out:
			if got != want {
				t.Errorf("Run() line = %q, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("Run() missing line %q", want)
		}
	}

	select {
	case err := <-done:
		t.Fatalf("Run() returned in forever mode err=%v", err)
	case <-time.After(time.Millisecond * 100):
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestListener_RunShortRead(t *testing.T) {
	conn, client := NewBufferedConn()
	defer conn.Close()
	defer client.Close()

	l, err := NewListener(ListenConfig{Timeout: time.Second, Out: io.Discard})
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	go client.WriteTo([]byte{0xbe, 0xac}, nil)

	if err := l.Run(context.Background(), conn); !errors.Is(err, ErrFrameLen) {
		t.Errorf("Run() error = %v, want ErrFrameLen", err)
	}
}

func TestListener_RunClosed(t *testing.T) {
	conn, client := NewBufferedConn()
	client.Close()
	defer conn.Close()

	l, err := NewListener(ListenConfig{Out: io.Discard})
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	err = l.Run(context.Background(), conn)
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Errorf("Run() error = %v, want read error", err)
	}
}
