package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrMalformedHeader      = errors.New("malformed frame header")
	ErrMissingContentLength = errors.New("Content-Length header not found")
	ErrInvalidContentLength = errors.New("invalid Content-Length value")
)

// framedPipe wraps a stream and frames every write with LSP-style
// Content-Length headers. Reads return the frame payloads as one
// continuous stream.
type framedPipe struct {
	stdio  io.ReadWriteCloser
	reader *bufio.Reader

	rmu     sync.Mutex
	pending []byte

	wmu sync.Mutex
}

func newFramedPipe(stdio io.ReadWriteCloser) *framedPipe {
	return &framedPipe{
		stdio:  stdio,
		reader: bufio.NewReader(stdio),
	}
}

// Write writes p as a single frame.
func (f *framedPipe) Write(p []byte) (int, error) {
	f.wmu.Lock()
	defer f.wmu.Unlock()

	frame := make([]byte, 0, len(p)+32)
	frame = fmt.Appendf(frame, "Content-Length: %d\r\n\r\n", len(p))
	frame = append(frame, p...)

	if _, err := f.stdio.Write(frame); err != nil {
		return 0, err
	}

	return len(p), nil
}

func (f *framedPipe) Read(p []byte) (int, error) {
	f.rmu.Lock()
	defer f.rmu.Unlock()

	for len(f.pending) == 0 {
		frame, err := f.readFrame()
		if err != nil {
			return 0, err
		}
		f.pending = frame
	}

	n := copy(p, f.pending)
	f.pending = f.pending[n:]

	return n, nil
}

func (f *framedPipe) readFrame() ([]byte, error) {
	length := -1

	for {
		line, err := f.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}

		if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidContentLength, strings.TrimSpace(value))
		}
		length = n
	}

	if length < 0 {
		return nil, ErrMissingContentLength
	}

	frame := make([]byte, length)
	if n, err := io.ReadFull(f.reader, frame); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("unexpected EOF, expected %d bytes, got %d bytes", length, n)
		}
		return nil, err
	}

	return frame, nil
}

func (f *framedPipe) Close() error {
	return f.stdio.Close()
}
