package main

import (
	"log"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtSessionCreate = "session_create"
	EvtSessionStart  = "session_start"
	EvtSessionDelete = "session_delete"
	EvtSessionJoin   = "session_join"
	EvtKill          = "kill"
	EvtWin           = "win"
	EvtItemPickup    = "item_pickup"
)

// GameEvent is a single trackable event.
type GameEvent struct {
	Type      string
	PlayerID  string
	SessionID string
	Data      string
	Timestamp time.Time
}

const (
	analyticsBufSize   = 1024
	analyticsBatchSize = 64
	analyticsFlushTick = 5 * time.Second
)

// Analytics batches game events into background database writes. A full
// buffer drops events rather than blocking game logic.
type Analytics struct {
	db     *DB
	events chan GameEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewAnalytics creates and starts the analytics background writer.
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan GameEvent, analyticsBufSize),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Track records an event. Non-blocking; drops when the buffer is full.
func (a *Analytics) Track(evtType, playerID, sessionID, data string) {
	select {
	case a.events <- GameEvent{
		Type:      evtType,
		PlayerID:  playerID,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now(),
	}:
	default:
	}
}

func (a *Analytics) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(analyticsFlushTick)
	defer ticker.Stop()

	batch := make([]GameEvent, 0, analyticsBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := a.db.InsertEvents(batch); err != nil {
			log.Printf("analytics flush: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-a.events:
			batch = append(batch, e)
			if len(batch) >= analyticsBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-a.stop:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case e := <-a.events:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes pending events and stops the writer.
func (a *Analytics) Close() {
	close(a.stop)
	a.wg.Wait()
}
