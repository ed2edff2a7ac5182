// Package diaglog is the diagnostic logger: a bus-fed, line-oriented log
// renderer with an independent lifecycle. Services publish entries under
// log/<level>/<source>; the logger renders them to a host-visible sink and
// never feeds anything back, so it has no data dependency on the rest of
// the system.
package diaglog

import (
	"context"
	"strconv"

	"rangewatch-go/bus"
	"rangewatch-go/x/timex"
)

// Entry is the payload published under log/<level>/<source>.
type Entry struct {
	Msg  string `json:"msg"`
	TSms int64  `json:"ts_ms"`
}

// Sink renders one finished log line. Implementations must not block for
// long; a slow sink backs up only the logger's own queue.
type Sink interface {
	WriteLine(line string)
}

type Service struct {
	conn *bus.Connection
	sink Sink
}

func New(conn *bus.Connection, sink Sink) *Service {
	if sink == nil {
		sink = DefaultSink()
	}
	return &Service{conn: conn, sink: sink}
}

// Run starts the logger loop; call from its own goroutine. It subscribes to
// the whole log/# subtree and runs until the context is cancelled.
func Run(ctx context.Context, conn *bus.Connection, sink Sink) {
	New(conn, sink).Run(ctx)
}

func (s *Service) Run(ctx context.Context) {
	sub := s.conn.Subscribe(bus.T("log", bus.WildcardAll))
	defer s.conn.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Channel():
			s.render(msg)
		}
	}
}

func (s *Service) render(msg *bus.Message) {
	level, _ := msg.Topic.At(1).(string)
	source, _ := msg.Topic.At(2).(string)

	switch p := msg.Payload.(type) {
	case Entry:
		s.sink.WriteLine(formatLine(p.TSms, level, source, p.Msg))
	case string:
		s.sink.WriteLine(formatLine(timex.NowMs(), level, source, p))
	}
}

// formatLine renders "[ts] LEVEL source: msg" without fmt, which keeps it
// cheap on the MCU.
func formatLine(ts int64, level, source, msg string) string {
	b := make([]byte, 0, 16+len(level)+len(source)+len(msg))
	b = append(b, '[')
	b = strconv.AppendInt(b, ts, 10)
	b = append(b, "] "...)
	for i := 0; i < len(level); i++ {
		c := level[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b = append(b, c)
	}
	b = append(b, ' ')
	b = append(b, source...)
	b = append(b, ": "...)
	b = append(b, msg...)
	return string(b)
}

// ---- Publishing helpers ----

// Info publishes an informational line from source.
func Info(conn *bus.Connection, source, msg string) {
	publish(conn, "info", source, msg)
}

// Error publishes an error line from source.
func Error(conn *bus.Connection, source, msg string) {
	publish(conn, "error", source, msg)
}

func publish(conn *bus.Connection, level, source, msg string) {
	conn.Publish(conn.NewMessage(
		bus.T("log", level, source),
		Entry{Msg: msg, TSms: timex.NowMs()},
		false,
	))
}
