// Package worker implements the single-writer chain worker: one goroutine
// holds exclusive permission to mutate the chain and mempool, consuming
// submit-block/submit-tx/query messages off a bounded channel in
// submission order. It is built on the same goroutine/quit-channel idiom
// a mining loop uses, generalized from a single mining loop into a general
// message-processing worker.
package worker

import (
	"sync"

	"go.dedis.ch/onet/v3/log"

	"vulkan/block"
	"vulkan/chain"
	"vulkan/mempool"
	"vulkan/tx"
)

// DefaultQueueSize bounds the ingress channel.
const DefaultQueueSize = 256

type msgKind int

const (
	msgSubmitBlock msgKind = iota
	msgSubmitTx
	msgQuery
)

type message struct {
	kind   msgKind
	block  *block.Block
	tx     *tx.Transaction
	query  func()
	result chan error
}

// Worker drains the ingress channel sequentially: validation, hashing and
// state mutation never yield, so suspension is confined to the channel
// read itself and the fsync inside the chain manager's write batch.
type Worker struct {
	mgr  *chain.Manager
	pool *mempool.Pool

	msgs chan *message
	quit chan struct{}

	mu      sync.Mutex
	started bool
	doneCh  chan struct{}
}

// New builds a worker over mgr and pool, not yet running.
func New(mgr *chain.Manager, pool *mempool.Pool) *Worker {
	return &Worker{
		mgr:  mgr,
		pool: pool,
		msgs: make(chan *message, DefaultQueueSize),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.quit = make(chan struct{})
	go w.run()
	w.started = true
	log.Info("worker: started")
}

// Stop signals the worker to exit after finishing any in-flight message and
// draining whatever is already buffered on the ingress channel. It blocks
// until the goroutine has returned.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	done := make(chan struct{})
	w.doneCh = done
	close(w.quit)
	w.started = false
	w.mu.Unlock()

	<-done
	log.Info("worker: stopped")
}

func (w *Worker) run() {
	defer func() {
		w.mu.Lock()
		d := w.doneCh
		w.doneCh = nil
		w.mu.Unlock()
		if d != nil {
			close(d)
		}
	}()
	for {
		select {
		case msg := <-w.msgs:
			w.handle(msg)
		case <-w.quit:
			for {
				select {
				case msg := <-w.msgs:
					w.handle(msg)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) handle(msg *message) {
	switch msg.kind {
	case msgSubmitBlock:
		err := w.mgr.Submit(msg.block)
		msg.result <- err
	case msgSubmitTx:
		var err error
		if verr := w.pool.Admit(msg.tx); verr != nil {
			err = verr
		}
		msg.result <- err
	case msgQuery:
		msg.query()
		msg.result <- nil
	}
}

// SubmitBlock enqueues b and blocks until the worker has processed it.
func (w *Worker) SubmitBlock(b *block.Block) error {
	msg := &message{kind: msgSubmitBlock, block: b, result: make(chan error, 1)}
	w.msgs <- msg
	return <-msg.result
}

// SubmitTx enqueues t for mempool admission and blocks until processed.
func (w *Worker) SubmitTx(t *tx.Transaction) error {
	msg := &message{kind: msgSubmitTx, tx: t, result: make(chan error, 1)}
	w.msgs <- msg
	return <-msg.result
}

// Query runs fn inside the worker goroutine, serialized against every
// mutating operation. Use this only when a read must be totally ordered
// relative to writes; reads that tolerate a slightly stale, consistent
// snapshot should go straight to the store's Snapshot instead.
func (w *Worker) Query(fn func()) {
	msg := &message{kind: msgQuery, query: fn, result: make(chan error, 1)}
	w.msgs <- msg
	<-msg.result
}
