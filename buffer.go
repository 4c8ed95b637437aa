package beacon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
)

const EntriesChanSize = 100

var (
	ErrBufferClosed = errors.New("buffer is closed")
	ErrRejected     = errors.New("chunk rejected")
)

type ErrorListener func(err error)

// Buffer accumulates entries per tag and hands each chunk to an Output. Chunks are not
// retried or persisted.
type Buffer struct {
	ctx           context.Context
	output        *Output
	config        BufferConfig
	errorListener ErrorListener

	requests chan bufferRequest
	done     chan struct{}
	closeErr error

	mu     sync.RWMutex
	closed bool
}

// bufferRequest carries an entry, or requests a flush of all chunks when entry is nil.
type bufferRequest struct {
	tag   string
	entry []byte
}

type chunk struct {
	data    []byte
	records int
}

func NewBuffer(ctx context.Context, output *Output, config BufferConfig, errorListener ErrorListener) (*Buffer, error) {
	if output == nil {
		return nil, errors.New("output is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b := &Buffer{
		ctx:           ctx,
		output:        output,
		config:        config,
		errorListener: errorListener,
		requests:      make(chan bufferRequest, EntriesChanSize),
		done:          make(chan struct{}),
	}
	go b.processEntries()
	return b, nil
}

// Emit formats record and queues it under tag. Records the output drops are skipped
// without error.
func (b *Buffer) Emit(tag string, t time.Time, record Record) error {
	entry, ok := b.output.Format(tag, t, record)
	if !ok {
		return nil
	}
	return b.send(bufferRequest{tag: tag, entry: entry})
}

// Flush requests that all pending chunks be written. Failures go to the ErrorListener.
func (b *Buffer) Flush() error {
	return b.send(bufferRequest{})
}

func (b *Buffer) send(req bufferRequest) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBufferClosed
	}

	select {
	case b.requests <- req:
		return nil
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

// Close writes all pending chunks, stops the buffer and returns the errors of that final
// flush.
func (b *Buffer) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.requests)
	}
	b.mu.Unlock()

	<-b.done
	return b.closeErr
}

func (b *Buffer) processEntries() {
	defer close(b.done)

	chunks := make(map[string]*chunk)

	var flushTimerChan <-chan time.Time

	for {
		select {
		case <-b.ctx.Done():
			b.closeErr = b.ctx.Err()
			return

		case req, ok := <-b.requests:
			if !ok {
				b.closeErr = b.flushAll(chunks)
				return
			}

			if req.entry == nil {
				b.reportError(b.flushAll(chunks))
			} else {
				c := chunks[req.tag]
				if c == nil {
					c = &chunk{}
					chunks[req.tag] = c
				}
				c.data = append(c.data, req.entry...)
				c.records++

				if b.shouldFlush(c.records) {
					delete(chunks, req.tag)
					b.reportError(b.flush(req.tag, c))
				} else if flushTimerChan == nil && b.config.FlushInterval != 0 {
					flushTimerChan = time.After(b.config.FlushInterval)
				}
			}

		case <-flushTimerChan:
			b.reportError(b.flushAll(chunks))
		}

		if len(chunks) == 0 {
			// and "clear" timer
			flushTimerChan = nil
		}
	}
}

func (b *Buffer) shouldFlush(records int) bool {
	if b.config.ChunkLimitRecords == 0 && b.config.FlushInterval == 0 {
		return true
	}

	if b.config.ChunkLimitRecords > 0 && records >= b.config.ChunkLimitRecords {
		return true
	}
	return false
}

// flushAll writes every pending chunk in tag order and empties chunks.
func (b *Buffer) flushAll(chunks map[string]*chunk) error {
	tags := make([]string, 0, len(chunks))
	for tag := range chunks {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var errs error
	for _, tag := range tags {
		errs = multierr.Append(errs, b.flush(tag, chunks[tag]))
		delete(chunks, tag)
	}
	return errs
}

func (b *Buffer) flush(tag string, c *chunk) error {
	result, err := b.output.Write(b.ctx, tag, c.data)
	if err != nil {
		return fmt.Errorf("failed to write chunk %q: %w", tag, err)
	}
	if result.Outcome == Rejected {
		return fmt.Errorf("%w: %q: %s %s", ErrRejected, tag, result.Status, result.Body)
	}
	return nil
}

func (b *Buffer) reportError(err error) {
	if err == nil || b.errorListener == nil {
		return
	}
	for _, e := range multierr.Errors(err) {
		b.errorListener(e)
	}
}
