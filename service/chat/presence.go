package chat

import (
	"context"
	"time"

	"MChat/logger"
	"MChat/tools/security"
)

// PresenceMirror receives each snapshot out-of-band (redis keys). Optional;
// delivery never depends on it.
type PresenceMirror interface {
	Sync(ctx context.Context, online []security.Identity) error
}

// Broadcaster pushes the full presence snapshot to every connection on any
// membership change. Always the full list, never a diff; rapid bursts may
// broadcast several times in a row and that is fine.
type Broadcaster struct {
	mgr    *ConnManager
	mirror PresenceMirror
}

func NewBroadcaster(mgr *ConnManager, mirror PresenceMirror) *Broadcaster {
	return &Broadcaster{mgr: mgr, mirror: mirror}
}

// Broadcast snapshots the registry at this moment and fans the list out to
// all connections, unbound ones included.
func (b *Broadcaster) Broadcast() {
	online := b.mgr.SnapshotIdentities()
	payload := BuildPresence(online)
	for _, w := range b.mgr.SnapshotConns() {
		w.trySend(payload)
	}

	if b.mirror != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := b.mirror.Sync(ctx, online); err != nil {
				logger.Warnf("[presence] mirror sync err=%v", err)
			}
		}()
	}
}
