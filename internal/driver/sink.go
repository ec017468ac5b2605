package driver

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valyala/bytebufferpool"

	"github.com/dloss/linepipe/internal/errs"
)

// Sink is where the Stream Driver writes produced and emitted lines:
// each line followed by a single "\n".
type Sink interface {
	WriteLine(line string) error
	Flush() error
	Close() error
}

// NewSink builds a Sink from the -o flag value: "-" or "" means stdout, a
// ws:// or wss:// URL routes to the websocket sink, anything else is a
// file path opened for (re)write.
func NewSink(target string) (Sink, error) {
	if target == "" || target == "-" {
		return newFileSink(os.Stdout, false), nil
	}
	if u, err := url.Parse(target); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
		return newWebsocketSink(target)
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("%w: -o %s: %v", errs.ErrIO, target, err)
	}
	return newFileSink(f, true), nil
}

// fileSink writes through a buffered writer, flushing on Terminate/EOF/exit.
type fileSink struct {
	w      *bufio.Writer
	closer io.Closer // nil for stdout
}

func newFileSink(w io.Writer, closable bool) *fileSink {
	s := &fileSink{w: bufio.NewWriter(w)}
	if closable {
		if c, ok := w.(io.Closer); ok {
			s.closer = c
		}
	}
	return s
}

func (s *fileSink) WriteLine(line string) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString(line)
	buf.WriteByte('\n')
	if _, err := s.w.Write(buf.B); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}

func (s *fileSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}

func (s *fileSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// websocketSink streams produced lines as websocket text frames, an
// alternate sink for consumers that want a live feed instead of a file.
type websocketSink struct {
	conn *websocket.Conn
}

func newWebsocketSink(target string) (*websocketSink, error) {
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: -o %s: %v", errs.ErrIO, target, err)
	}
	return &websocketSink{conn: conn}, nil
}

func (s *websocketSink) WriteLine(line string) error {
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}

func (s *websocketSink) Flush() error { return nil }

func (s *websocketSink) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
