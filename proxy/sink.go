package proxy

import (
	"errors"
	"net/http"
)

var errSinkClosed = errors.New("response already finalized")

// responseSink exposes a client ResponseWriter as a transcode.Sink.
// Close flushes what has been written; the handler returning ends the response.
type responseSink struct {
	w       http.ResponseWriter
	written int64
	closed  bool
}

func newResponseSink(w http.ResponseWriter) *responseSink {
	return &responseSink{w: w}
}

func (s *responseSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errSinkClosed
	}
	n, err := s.w.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *responseSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := http.NewResponseController(s.w).Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}
