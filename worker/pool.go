package worker

import (
	"context"
	"log"
	"sync"
)

// ResultCallback is invoked on recognition completion (from a worker
// goroutine). The event loop passes a closure that posts the result back into
// the interaction goroutine; no session state is touched here.
type ResultCallback func(text string, err error)

// RecognizeFunc calls the external recognition collaborator with the
// rasterized crop bytes.
type RecognizeFunc func(ctx context.Context, image []byte) (string, error)

// Pool runs recognition jobs off the interaction goroutine. The input queue
// has a single slot (strict back-pressure): the session state machine already
// enforces one in-flight request, the pool only has to refuse overflow.
type Pool struct {
	jobs      chan job
	wg        sync.WaitGroup
	recognize RecognizeFunc
}

type job struct {
	ctx   context.Context
	image []byte
	cb    ResultCallback
}

// New creates a worker pool around recognize. Size defaults to 1 when
// size<=0; one worker is enough for a single-session process.
func New(size int, recognize RecognizeFunc) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1), recognize: recognize}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				// A job cancelled before it started must not reach the
				// collaborator at all.
				if err := j.ctx.Err(); err != nil {
					j.cb("", err)
					continue
				}
				log.Printf("Worker: starting recognition for %d image bytes", len(j.image))
				text, err := recognizeWithContext(j.ctx, j.image, p.recognize)
				log.Printf("Worker: recognition completed, text length=%d, err=%v", len(text), err)
				j.cb(text, err)
			}
		}()
	}
}

// Submit enqueues a recognition job if the single-slot queue is free.
// Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, image []byte, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, image: image, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// recognizeWithContext runs recognize in a sub-goroutine and returns early on
// ctx expiry. The service call is not forcibly aborted; a late result is
// simply dropped, which is the cancellation contract for a blocking network
// collaborator without a cooperative cancellation point.
func recognizeWithContext(ctx context.Context, image []byte, recognize RecognizeFunc) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		return recognize(ctx, image)
	}
	resCh := make(chan struct {
		text string
		err  error
	}, 1)
	go func() {
		text, err := recognize(ctx, image)
		resCh <- struct {
			text string
			err  error
		}{text, err}
	}()
	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
