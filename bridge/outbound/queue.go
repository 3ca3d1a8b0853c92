package outbound

import (
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var Logger = logger.GetLogger("bridge/outbound")

// --------------------------------------------------------------------------
// Deferred Commands
// --------------------------------------------------------------------------

// Record is one deferred command. If OverrideKey is set, a later record with the same
// key queued for the same handle replaces this one in place.
type Record struct {
	Command     common.Command
	Args        []codec.Value
	OverrideKey string
}

// frame encodes the record, array arguments are flattened to comma joined strings
func (r Record) frame() []byte {
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = a.Flatten()
	}
	return codec.EncodeText(r.Command, args...)
}

// handleQueue holds the deferred records of one handle (or of the global bucket)
type handleQueue struct {
	records  []Record
	override map[string]int // override key -> index in records
}

func (q *handleQueue) add(r Record) {
	if r.OverrideKey != "" {
		if i, exists := q.override[r.OverrideKey]; exists {
			q.records[i] = r
			return
		}
		if q.override == nil {
			q.override = make(map[string]int)
		}
		q.override[r.OverrideKey] = len(q.records)
	}
	q.records = append(q.records, r)
}

// --------------------------------------------------------------------------
// Queue
// --------------------------------------------------------------------------

// Queue collects outbound commands and geometry updates between flushes.
//
// Deferred commands are kept per handle in insertion order, followed by the global bucket.
// Geometry updates are merged so that each handle has at most one pending entry.
// The queue is not safe for concurrent use, it is owned by the tick goroutine.
type Queue struct {
	handles     map[common.Handle]*handleQueue
	handleOrder []common.Handle
	global      handleQueue

	geometry      map[common.Handle]*codec.Geometry
	geometryOrder []common.Handle

	messageInterval  time.Duration
	geometryInterval time.Duration
	nextMessages     time.Time
	nextGeometry     time.Time
	expediteMessages bool
	expediteGeometry bool
}

// NewQueue creates a new queue with the given flush cadences
func NewQueue(messageInterval, geometryInterval time.Duration) *Queue {
	return &Queue{
		handles:          make(map[common.Handle]*handleQueue),
		geometry:         make(map[common.Handle]*codec.Geometry),
		messageInterval:  messageInterval,
		geometryInterval: geometryInterval,
	}
}

// Enqueue appends a command for a handle
func (q *Queue) Enqueue(h common.Handle, cmd common.Command, args ...codec.Value) {
	q.handleQueue(h).add(Record{Command: cmd, Args: args})
}

// EnqueueWithOverride queues a command for a handle, replacing an already queued
// command with the same key in place
func (q *Queue) EnqueueWithOverride(h common.Handle, key string, cmd common.Command, args ...codec.Value) {
	q.handleQueue(h).add(Record{Command: cmd, Args: args, OverrideKey: key})
}

// EnqueueGlobal appends a command that does not belong to any handle
func (q *Queue) EnqueueGlobal(cmd common.Command, args ...codec.Value) {
	q.global.add(Record{Command: cmd, Args: args})
}

// EnqueueGlobalWithOverride is the override variant of EnqueueGlobal
func (q *Queue) EnqueueGlobalWithOverride(key string, cmd common.Command, args ...codec.Value) {
	q.global.add(Record{Command: cmd, Args: args, OverrideKey: key})
}

func (q *Queue) handleQueue(h common.Handle) *handleQueue {
	hq, exists := q.handles[h]
	if !exists {
		hq = &handleQueue{}
		q.handles[h] = hq
		q.handleOrder = append(q.handleOrder, h)
	}
	return hq
}

// UpdateGeometry merges a geometry update into the pending entry of the handle
func (q *Queue) UpdateGeometry(h common.Handle, update codec.Geometry) {
	if update.Empty() {
		return
	}
	g, exists := q.geometry[h]
	if !exists {
		g = &codec.Geometry{}
		q.geometry[h] = g
		q.geometryOrder = append(q.geometryOrder, h)
	}
	g.Merge(update)
}

// Purge drops all deferred commands and the pending geometry of a handle
func (q *Queue) Purge(h common.Handle) {
	if _, exists := q.handles[h]; exists {
		delete(q.handles, h)
		q.handleOrder = removeHandle(q.handleOrder, h)
	}
	if _, exists := q.geometry[h]; exists {
		delete(q.geometry, h)
		q.geometryOrder = removeHandle(q.geometryOrder, h)
	}
}

func removeHandle(order []common.Handle, h common.Handle) []common.Handle {
	for i, o := range order {
		if o == h {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// --------------------------------------------------------------------------
// Flushing
// --------------------------------------------------------------------------

// Pending returns the number of queued commands and pending geometry entries
func (q *Queue) Pending() (messages, geometry int) {
	for _, hq := range q.handles {
		messages += len(hq.records)
	}
	return messages + len(q.global.records), len(q.geometry)
}

// ExpediteMessages makes the next Due report the message cadence as due
func (q *Queue) ExpediteMessages() { q.expediteMessages = true }

// ExpediteGeometry makes the next Due report the geometry cadence as due
func (q *Queue) ExpediteGeometry() { q.expediteGeometry = true }

// Due reports which cadences should flush now. A cadence with nothing pending is never due.
func (q *Queue) Due(now time.Time) (messages, geometry bool) {
	pendingMessages, pendingGeometry := q.Pending()
	messages = pendingMessages > 0 && (q.expediteMessages || !now.Before(q.nextMessages))
	geometry = pendingGeometry > 0 && (q.expediteGeometry || !now.Before(q.nextGeometry))
	return messages, geometry
}

// Flush encodes all deferred commands into one bundle, handles in insertion order
// followed by the global bucket. It returns nil if nothing was queued.
func (q *Queue) Flush(now time.Time) []byte {
	q.expediteMessages = false
	q.nextMessages = now.Add(q.messageInterval)

	frames := make([][]byte, 0, len(q.handleOrder)+len(q.global.records))
	for _, h := range q.handleOrder {
		for _, r := range q.handles[h].records {
			frames = append(frames, r.frame())
		}
	}
	for _, r := range q.global.records {
		frames = append(frames, r.frame())
	}

	q.handles = make(map[common.Handle]*handleQueue)
	q.handleOrder = q.handleOrder[:0]
	q.global = handleQueue{}

	if len(frames) == 0 {
		return nil
	}
	Logger.Debugf("flushing %d deferred commands", len(frames))
	return codec.EncodeBundle(now, frames...)
}

// FlushGeometry encodes all pending geometry into one binary updateSpatial frame.
// It returns nil if no geometry was pending.
func (q *Queue) FlushGeometry(now time.Time) ([]byte, error) {
	q.expediteGeometry = false
	q.nextGeometry = now.Add(q.geometryInterval)

	if len(q.geometryOrder) == 0 {
		return nil, nil
	}

	records := make([]codec.SpatialRecord, 0, len(q.geometryOrder))
	for _, h := range q.geometryOrder {
		records = append(records, codec.SpatialRecord{Handle: h, Geometry: *q.geometry[h]})
	}

	q.geometry = make(map[common.Handle]*codec.Geometry)
	q.geometryOrder = q.geometryOrder[:0]

	return codec.EncodeSpatial(now, records)
}
