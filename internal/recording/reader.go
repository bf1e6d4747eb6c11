package recording

import (
	"context"
	"io"
	"sync"
)

const readerChunkSize = 4096

// ReaderSource adapts any byte stream (an ffmpeg pipe, a file, stdin) into a
// CaptureSource. The stream ends when the reader returns io.EOF.
type ReaderSource struct {
	r io.ReadCloser
}

func NewReaderSource(r io.ReadCloser) *ReaderSource {
	return &ReaderSource{r: r}
}

func (s *ReaderSource) Open(ctx context.Context, _ Constraints) (CaptureStream, error) {
	if s.r == nil {
		return nil, ErrDeviceUnavailable
	}
	st := &readerStream{
		r:      s.r,
		chunks: make(chan []byte),
		closed: make(chan struct{}),
	}
	go st.read()
	return st, nil
}

type readerStream struct {
	r         io.ReadCloser
	chunks    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *readerStream) Chunks() <-chan []byte { return s.chunks }

func (s *readerStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.r.Close()
	})
	return err
}

func (s *readerStream) read() {
	defer close(s.chunks)

	buf := make([]byte, readerChunkSize)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.closed:
				return
			}
		}
		if err != nil {
			return
		}
	}
}
