// Package messages shows status text one line at a time, paced like the
// activity's on-screen log.
package messages

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
)

// Board queues messages and displays one per delay. The first message of an idle
// board is displayed immediately.
type Board struct {
	delay     time.Duration
	maxLines  int
	onDisplay func(text string)
	onMessage func(msg string)
	logger    *zap.Logger

	mu     sync.Mutex
	queue  []string
	lines  []string
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Board.
type Option func(*Board)

// WithOnDisplay registers a callback receiving the full displayed text after each message.
func WithOnDisplay(fn func(text string)) Option {
	return func(b *Board) { b.onDisplay = fn }
}

// WithOnMessage is called with each message as it is displayed.
func WithOnMessage(fn func(msg string)) Option {
	return func(b *Board) { b.onMessage = fn }
}

// WithLogger replaces the logger messages are echoed to.
func WithLogger(l *zap.Logger) Option {
	return func(b *Board) { b.logger = l }
}

// NewBoard starts a board.
func NewBoard(cfg config.MessagesConfig, opts ...Option) *Board {
	b := &Board{
		delay:    cfg.Delay,
		maxLines: cfg.MaxLines,
		logger:   zap.L().Named("messages"),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.run()
	return b
}

// Show queues msg for display. It never blocks; calls after Close are ignored.
func (b *Board) Show(msg string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Board) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}

		for {
			msg, ok := b.next()
			if !ok {
				break
			}
			b.display(msg)

			if b.delay > 0 {
				timer := time.NewTimer(b.delay)
				select {
				case <-b.done:
					timer.Stop()
					return
				case <-timer.C:
				}
			}
		}
	}
}

func (b *Board) next() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return "", false
	}
	msg := b.queue[0]
	b.queue[0] = ""
	b.queue = b.queue[1:]
	return msg, true
}

func (b *Board) display(msg string) {
	b.mu.Lock()
	b.lines = append(b.lines, msg)
	if b.maxLines > 0 && len(b.lines) > b.maxLines {
		b.lines = append(b.lines[:0], b.lines[len(b.lines)-b.maxLines:]...)
	}
	text := strings.Join(b.lines, "\n")
	cb, onMsg := b.onDisplay, b.onMessage
	b.mu.Unlock()

	b.logger.Info(msg)
	if onMsg != nil {
		onMsg(msg)
	}
	if cb != nil {
		cb(text)
	}
}

// Text returns every displayed message joined by newlines.
func (b *Board) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// Lines returns a copy of the displayed messages.
func (b *Board) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Pending returns how many messages wait to be displayed.
func (b *Board) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops the display goroutine. Queued messages are discarded.
func (b *Board) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.queue = nil
		b.mu.Unlock()
		close(b.done)
	})
	b.wg.Wait()
}
