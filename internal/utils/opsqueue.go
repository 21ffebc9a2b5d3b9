package utils

import (
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

// OpsQueue runs closures one at a time, in enqueue order, on a single goroutine.
// The queue is unbounded so producers (pion and socket callbacks) never block or drop.
type OpsQueue struct {
	logger *zap.Logger
	name   string

	lock      sync.Mutex
	ops       deque.Deque[func()]
	wake      chan struct{}
	isStarted bool
	isStopped bool
	done      chan struct{}
}

func NewOpsQueue(logger *zap.Logger, name string) *OpsQueue {
	if logger == nil {
		logger = zap.L()
	}
	return &OpsQueue{
		logger: logger.Named("ops-queue").With(zap.String("name", name)),
		name:   name,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (oq *OpsQueue) Start() {
	oq.lock.Lock()
	defer oq.lock.Unlock()
	if oq.isStarted || oq.isStopped {
		return
	}
	oq.isStarted = true
	go oq.process()
}

// Stop rejects new ops. Ops already queued still run before the worker exits.
func (oq *OpsQueue) Stop() {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		return
	}
	oq.isStopped = true
	started := oq.isStarted
	oq.lock.Unlock()

	if !started {
		close(oq.done)
		return
	}
	oq.signal()
}

// Done is closed once the worker has drained and exited.
func (oq *OpsQueue) Done() <-chan struct{} {
	return oq.done
}

// Enqueue returns false if the queue has been stopped.
func (oq *OpsQueue) Enqueue(op func()) bool {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		oq.logger.Debug("dropping op on stopped queue")
		return false
	}
	oq.ops.PushBack(op)
	oq.lock.Unlock()

	oq.signal()
	return true
}

func (oq *OpsQueue) signal() {
	select {
	case oq.wake <- struct{}{}:
	default:
	}
}

func (oq *OpsQueue) process() {
	defer close(oq.done)

	for {
		oq.lock.Lock()
		for oq.ops.Len() == 0 {
			if oq.isStopped {
				oq.lock.Unlock()
				return
			}
			oq.lock.Unlock()
			<-oq.wake
			oq.lock.Lock()
		}
		op := oq.ops.PopFront()
		oq.lock.Unlock()

		oq.run(op)
	}
}

func (oq *OpsQueue) run(op func()) {
	defer func() {
		if r := recover(); r != nil {
			oq.logger.Error("recovered from panic in op", zap.Any("panic", r))
		}
	}()
	op()
}
