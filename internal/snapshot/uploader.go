package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikeyg42/otgcam/internal/config"
	"github.com/mikeyg42/otgcam/internal/frame"
)

const uploadTimeout = 30 * time.Second

// Uploader stores every Nth frame it sees. It implements frame.Sink.
type Uploader struct {
	store   ObjectStore
	every   uint64
	prefix  string
	session string
	logger  *zap.Logger

	queue chan frame.Frame
	seen  atomic.Uint64

	uploaded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithSession sets the key segment naming this capture session.
func WithSession(id string) UploaderOption {
	return func(u *Uploader) { u.session = id }
}

// NewUploader starts the upload worker.
func NewUploader(store ObjectStore, cfg config.SnapshotConfig, opts ...UploaderOption) *Uploader {
	every := cfg.Every
	if every <= 0 {
		every = 1
	}
	queue := cfg.Queue
	if queue <= 0 {
		queue = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	u := &Uploader{
		store:   store,
		every:   uint64(every),
		prefix:  cfg.Prefix,
		session: uuid.NewString(),
		logger:  zap.L().Named("snapshot"),
		queue:   make(chan frame.Frame, queue),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.wg.Add(1)
	go u.run()
	return u
}

// Key returns the object key for a frame sequence number.
func (u *Uploader) Key(seq uint64) string {
	return path.Join(u.prefix, u.session, fmt.Sprintf("%08d.jpg", seq))
}

// HandleFrame queues every Nth frame. A full queue drops the frame.
func (u *Uploader) HandleFrame(fr frame.Frame) {
	if u.seen.Add(1)%u.every != 0 {
		return
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return
	}
	select {
	case u.queue <- fr:
	default:
		u.dropped.Add(1)
		u.logger.Warn("snapshot queue full, dropping frame", zap.Uint64("sequence", fr.Sequence))
	}
}

func (u *Uploader) run() {
	defer u.wg.Done()
	for fr := range u.queue {
		u.upload(fr)
	}
}

func (u *Uploader) upload(fr frame.Frame) {
	ctx, cancel := context.WithTimeout(u.ctx, uploadTimeout)
	defer cancel()

	key := u.Key(fr.Sequence)
	if err := u.store.Put(ctx, key, bytes.NewReader(fr.Data), int64(len(fr.Data)), "image/jpeg"); err != nil {
		u.failed.Add(1)
		u.logger.Error("snapshot upload failed", zap.String("key", key), zap.Error(err))
		return
	}
	u.uploaded.Add(1)
	u.logger.Debug("snapshot uploaded", zap.String("key", key), zap.Int("bytes", len(fr.Data)))
}

// Stats returns upload counters.
func (u *Uploader) Stats() (uploaded, dropped, failed uint64) {
	return u.uploaded.Load(), u.dropped.Load(), u.failed.Load()
}

// Close uploads what is queued and stops the worker. ctx bounds the drain;
// when it expires in-flight uploads are cancelled.
func (u *Uploader) Close(ctx context.Context) error {
	u.closeOnce.Do(func() {
		u.mu.Lock()
		u.closed = true
		close(u.queue)
		u.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		u.cancel()
		return nil
	case <-ctx.Done():
		u.cancel()
		<-done
		return ctx.Err()
	}
}
