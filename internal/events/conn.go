package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	maxReconnectDelay    = 30 * time.Second
	maxReconnectAttempts = 60
)

// ConnManager shares NATS connections by URL with reference counting.
// Multiple components asking for the same URL get one physical
// connection; the connection closes when the last holder releases it.
type ConnManager struct {
	logger *zap.Logger

	mu    sync.Mutex
	conns map[string]*managedConn
}

type managedConn struct {
	nc   *nats.Conn
	refs int
}

// NewConnManager creates an empty connection manager.
func NewConnManager(logger *zap.Logger) *ConnManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnManager{
		logger: logger,
		conns:  make(map[string]*managedConn),
	}
}

// Acquire returns a shared connection for url, dialing on first use.
// Connections retry on failed connect and reconnect up to
// maxReconnectAttempts times with exponential delay capped at 30
// seconds.
func (m *ConnManager) Acquire(url string) (*nats.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mc, ok := m.conns[url]; ok {
		mc.refs++
		return mc.nc, nil
	}

	logger := m.logger
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnectAttempts),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			delay := time.Second << uint(min(attempts, 10))
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			return delay
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("bus disconnected", zap.String("url", url), zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("bus reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	m.conns[url] = &managedConn{nc: nc, refs: 1}
	m.logger.Info("connected to bus", zap.String("url", url))
	return nc, nil
}

// Release drops one reference on url's connection, closing it when no
// holders remain. Releasing an unknown URL is a no-op.
func (m *ConnManager) Release(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.conns[url]
	if !ok {
		return
	}
	mc.refs--
	if mc.refs > 0 {
		return
	}
	delete(m.conns, url)
	mc.nc.Close()
	m.logger.Info("closed bus connection", zap.String("url", url))
}

// Close drains every connection regardless of reference counts. Intended
// for process shutdown.
func (m *ConnManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for url, mc := range m.conns {
		mc.nc.Close()
		delete(m.conns, url)
	}
}
