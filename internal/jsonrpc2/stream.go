package jsonrpc2

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Stream abstracts the framing of JSON RPC messages over a byte-oriented
// transport, so Conn can be used identically over stdio, a pipe, or (in
// tests) an in-memory buffer.
type Stream interface {
	// Read reads one complete message and returns its body along with the
	// number of bytes consumed off the wire (header included).
	Read(ctx context.Context) (data []byte, n int64, err error)
	// Write writes one complete message, framed, and returns the number
	// of bytes written.
	Write(ctx context.Context, data []byte) (int64, error)
	Close() error
}

// headerStream frames messages with the LSP/VS Code "Content-Length"
// header convention used over stdio:
//
//	Content-Length: <n>\r\n
//	\r\n
//	<n bytes of JSON>
type headerStream struct {
	in     *bufio.Reader
	out    io.Writer
	closer io.Closer
	outMu  sync.Mutex
}

// NewHeaderStream builds a Stream framing messages with Content-Length
// headers over the given reader/writer. If r implements io.Closer (or,
// failing that, w does), Close shuts it down.
func NewHeaderStream(r io.Reader, w io.Writer) Stream {
	s := &headerStream{in: bufio.NewReader(r), out: w}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	} else if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *headerStream) Read(ctx context.Context) ([]byte, int64, error) {
	var total int64
	var length int64 = -1
	for {
		line, err := s.in.ReadString('\n')
		total += int64(len(line))
		if err != nil {
			return nil, total, fmt.Errorf("reading header line: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			key := strings.TrimSpace(line[:idx])
			value := strings.TrimSpace(line[idx+1:])
			if strings.EqualFold(key, "Content-Length") {
				length, err = strconv.ParseInt(value, 10, 64)
				if err != nil {
					return nil, total, fmt.Errorf("parsing Content-Length: %w", err)
				}
			}
		}
	}
	if length < 0 {
		return nil, total, fmt.Errorf("missing Content-Length header")
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(s.in, data); err != nil {
		return nil, total, fmt.Errorf("reading message body: %w", err)
	}
	total += length
	return data, total, nil
}

func (s *headerStream) Write(ctx context.Context, data []byte) (int64, error) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	n, err := io.WriteString(s.out, header)
	if err != nil {
		return int64(n), err
	}
	m, err := s.out.Write(data)
	return int64(n + m), err
}

func (s *headerStream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
