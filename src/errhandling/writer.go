package errhandling

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"alchemiser/src/model"
)

// pendingRecord is either a record to store or, when flushed is set, a marker
// closed once everything queued before it has been written.
type pendingRecord struct {
	record  model.ErrorRecord
	flushed chan struct{}
}

// recordWriter moves RecordStore writes off the HandleError path. Records are
// written in the order they were queued.
type recordWriter struct {
	store  RecordStore
	logger *logrus.Entry
	ch     chan pendingRecord
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newRecordWriter(store RecordStore, logger *logrus.Entry, size int) *recordWriter {
	if size <= 0 {
		size = DefaultStoreBuffer
	}
	w := &recordWriter{
		store:  store,
		logger: logger,
		ch:     make(chan pendingRecord, size),
		done:   make(chan struct{}),
	}
	go w.drain()
	return w
}

// enqueue never blocks. A full queue or a closed writer drops the record.
func (w *recordWriter) enqueue(rec model.ErrorRecord) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.WithField("error_id", rec.ID).Warn("record store closed, record not persisted")
		return
	}
	select {
	case w.ch <- pendingRecord{record: rec}:
	default:
		w.logger.WithField("error_id", rec.ID).Warn("record store queue full, record not persisted")
	}
}

// flush blocks until every record queued before the call has been written.
func (w *recordWriter) flush() {
	marker := make(chan struct{})
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		<-w.done
		return
	}
	w.ch <- pendingRecord{flushed: marker}
	w.mu.RUnlock()
	<-marker
}

// close writes what is queued and stops the writer.
func (w *recordWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()
	<-w.done
}

func (w *recordWriter) drain() {
	defer close(w.done)
	for p := range w.ch {
		if p.flushed != nil {
			close(p.flushed)
			continue
		}
		w.write(p.record)
	}
}

func (w *recordWriter) write(rec model.ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithField("panic", fmt.Sprint(r)).Error("error record store panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := w.store.Create(ctx, rec); err != nil {
		w.logger.WithError(err).WithField("error_id", rec.ID).Warn("failed to persist error record")
	}
}
