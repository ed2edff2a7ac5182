//go:build !rp2040 && !rp2350

package diaglog

// consoleSink prints to the process console. Under TinyGo with USB CDC this
// is the host-visible serial monitor.
type consoleSink struct{}

func (consoleSink) WriteLine(line string) { println(line) }

func DefaultSink() Sink { return consoleSink{} }
