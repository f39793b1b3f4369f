package beacon

import (
	"errors"
	"os"
	"testing"
	"time"
)

func Test_bufferedPacketConn_ReadFrom(t *testing.T) {
	a, b := NewBufferedConn()
	defer a.Close()
	defer b.Close()

	sent := []byte("test")
	go func() {
		for i := 0; i < 3; i++ {
			a.WriteTo(sent, nil)
		}
	}()

	buffer := make([]byte, 32)
	for i := 0; i < 3; i++ {
		n, _, err := b.ReadFrom(buffer)
		if err != nil || n != len(sent) {
			t.Fatalf("error in read n=%d err=%v", n, err)
		}
	}
}

func Test_bufferedPacketConn_Deadline(t *testing.T) {
	a, b := NewBufferedConn()
	defer a.Close()
	defer b.Close()

	b.SetReadDeadline(time.Now().Add(time.Millisecond * 20))
	if _, _, err := b.ReadFrom(make([]byte, 32)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline error got=%v", err)
	}
}
