package stream

import (
	"encoding/json"
	"log"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

// SnapshotObserver bridges the session machine's state stream into the
// hub. OnState runs on the machine's event loop, so delivery is pushed
// through a small mailbox and a worker; a full mailbox drops the oldest
// pending snapshot since only the latest matters to a live viewer.
type SnapshotObserver struct {
	hub  *Hub
	mail chan tracking.StateSnapshot
	done chan struct{}
}

func NewSnapshotObserver(hub *Hub) *SnapshotObserver {
	o := &SnapshotObserver{
		hub:  hub,
		mail: make(chan tracking.StateSnapshot, 64),
		done: make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *SnapshotObserver) OnState(snap tracking.StateSnapshot) {
	for {
		select {
		case o.mail <- snap:
			return
		default:
		}
		select {
		case <-o.mail:
		default:
		}
	}
}

func (o *SnapshotObserver) Close() {
	close(o.done)
}

func (o *SnapshotObserver) run() {
	for {
		select {
		case <-o.done:
			return
		case snap := <-o.mail:
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("snapshot marshal error: %v", err)
				continue
			}
			o.hub.Broadcast(snap.SessionID, payload)
		}
	}
}
