package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "MChat/data/database/mgo/mongoutil"
	"MChat/logger"
	errs "MChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoManager keeps one shared client, reconnecting in the background
// until ctx is done. Callers gate on WaitReady once at startup.
type MongoManager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{}
	readyOnce sync.Once

	lastErr atomic.Value // string, last connect/health failure
}

var globalMgr = &MongoManager{readyCh: make(chan struct{})}

func Manager() *MongoManager { return globalMgr }

// StartAsync runs until ctx.Done(); closes readyCh on first successful
// connect, then keeps a health loop that reconnects on failure.
func StartAsync(ctx context.Context, cfg *mgo.Config) {
	go globalMgr.run(ctx, cfg)
}

func (m *MongoManager) run(ctx context.Context, cfg *mgo.Config) {
	const (
		baseBackoff = 200 * time.Millisecond
		maxBackoff  = 5 * time.Second
		healthEvery = 10 * time.Second
		failThresh  = 3
	)

	for {
		// connect phase with backoff + jitter
		attempt := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			cli, err := mgo.NewMongoDB(ctx, cfg)
			if err == nil {
				m.mu.Lock()
				m.client = cli
				m.mu.Unlock()
				m.readyOnce.Do(func() { close(m.readyCh) })
				logger.Infof("[mgo] connected db=%s", cfg.Database)
				break
			}
			m.lastErr.Store(err.Error())
			logger.Warnf("[mgo] connect failed attempt=%d err=%v", attempt, err)

			backoff := baseBackoff << attempt
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
			timer := time.NewTimer(backoff - jitter/2)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if attempt < 6 {
				attempt++
			}
		}

		// health phase; fall back to connect phase after repeated failures
		fail := 0
		ticker := time.NewTicker(healthEvery)
		alive := true
		for alive {
			select {
			case <-ctx.Done():
				ticker.Stop()
				m.disconnect()
				return
			case <-ticker.C:
				m.mu.RLock()
				c := m.client
				m.mu.RUnlock()
				if c == nil {
					alive = false
					break
				}
				if err := c.GetDB().Client().Ping(ctx, readpref.Primary()); err != nil {
					fail++
					m.lastErr.Store(err.Error())
					if fail >= failThresh {
						logger.Errorf("[mgo] lost connection, reconnecting err=%v", err)
						m.disconnect()
						alive = false
					}
				} else {
					fail = 0
				}
			}
		}
		ticker.Stop()
	}
}

func (m *MongoManager) disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
	}
}

// WaitReady blocks until the first connect succeeds or ctx is done.
func WaitReady(ctx context.Context, m *MongoManager) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if msg, ok := m.lastErr.Load().(string); ok && msg != "" {
			return errs.New(msg)
		}
		return ctx.Err()
	}
}

// TryGetDB reports whether a live database handle is currently held. It
// returns false during an outage window, between the health loop's
// disconnect and the next successful reconnect.
func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil, false
	}
	return globalMgr.client.GetDB(), true
}
