// Package fastlog writes key=value log lines without going through fmt for
// every field. Lines are pooled per logger.
package fastlog

import (
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

const bufSize = 2048

type Logger struct {
	Out   io.Writer
	mutex sync.Mutex
	lines sync.Pool
}

// Std logs to stderr
var Std = New(os.Stderr)

// New returns a logger writing complete lines to out.
func New(out io.Writer) *Logger {
	return &Logger{
		Out:   out,
		lines: sync.Pool{New: func() interface{} { return &Line{buffer: make([]byte, 0, bufSize)} }},
	}
}

type Line struct {
	logger *Logger
	buffer []byte
}

// LineLog is implemented by types that can append their fields to a line.
type LineLog interface {
	FastLog(*Line) *Line
}

func NewLine(module string, msg string) *Line {
	return Std.NewLine(module, msg)
}

// NewLine starts a line with the module name padded to six characters.
func (logger *Logger) NewLine(module string, msg string) *Line {
	l := logger.lines.Get().(*Line)
	l.logger = logger
	l.buffer = append(l.buffer[:0], "      :"...)
	copy(l.buffer[0:6], module)
	if msg != "" {
		l.buffer = append(l.buffer, ` msg="`...)
		l.buffer = append(l.buffer, msg...)
		l.buffer = append(l.buffer, '"')
	}
	return l
}

// Write outputs the line and returns it to the pool.
func (l *Line) Write() error {
	logger := l.logger
	l.buffer = append(l.buffer, '\n')
	logger.mutex.Lock()
	_, err := logger.Out.Write(l.buffer)
	logger.mutex.Unlock()
	logger.lines.Put(l)
	return err
}

// ToString returns the line content and releases the line.
func (l *Line) ToString() string {
	s := string(l.buffer)
	l.logger.lines.Put(l)
	return s
}

func (l *Line) name(name string) {
	l.buffer = append(l.buffer, ' ')
	l.buffer = append(l.buffer, name...)
	l.buffer = append(l.buffer, '=')
}

func (l *Line) Byte(value byte) *Line {
	l.buffer = append(l.buffer, value)
	return l
}

func (l *Line) String(name string, value string) *Line {
	l.name(name)
	l.buffer = append(l.buffer, value...)
	return l
}

func (l *Line) Struct(value LineLog) *Line {
	return value.FastLog(l)
}

func (l *Line) Int(name string, value int) *Line {
	l.name(name)
	l.buffer = strconv.AppendInt(l.buffer, int64(value), 10)
	return l
}

func (l *Line) Bool(name string, value bool) *Line {
	l.name(name)
	l.buffer = strconv.AppendBool(l.buffer, value)
	return l
}

func (l *Line) Duration(name string, value time.Duration) *Line {
	l.name(name)
	l.buffer = append(l.buffer, value.String()...)
	return l
}

func (l *Line) Error(value error) *Line {
	if value == nil {
		return l.String("error", "nil")
	}
	return l.String("error", value.Error())
}

func (l *Line) MAC(name string, value net.HardwareAddr) *Line {
	l.name(name)
	for i, v := range value {
		if i > 0 {
			l.buffer = append(l.buffer, ':')
		}
		l.writeHex(v)
	}
	return l
}

var hexAscii = []byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

func (l *Line) writeHex(value byte) {
	l.buffer = append(l.buffer, hexAscii[value>>4], hexAscii[value&0x0f])
}

func (l *Line) Uint16Hex(name string, value uint16) *Line {
	l.name(name)
	l.buffer = append(l.buffer, "0x"...)
	l.writeHex(byte(value >> 8))
	l.writeHex(byte(value))
	return l
}

func (l *Line) ByteArray(name string, value []byte) *Line {
	l.name(name)
	l.buffer = append(l.buffer, '[')
	for i, v := range value {
		if i > 0 {
			l.buffer = append(l.buffer, ' ')
		}
		l.writeHex(v)
	}
	l.buffer = append(l.buffer, ']')
	return l
}
