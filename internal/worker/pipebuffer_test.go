package worker

import (
	"bytes"
	"sync"
)

// pipeBuffer is a concurrency-safe byte sink used in place of a real
// stdout pipe in tests: the dispatcher/drain goroutine writes to it while
// the test goroutine reads back the result after synchronizing on a done
// channel.
type pipeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *pipeBuffer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *pipeBuffer) Reader() *bytes.Reader {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.NewReader(p.buf.Bytes())
}

func (p *pipeBuffer) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}
