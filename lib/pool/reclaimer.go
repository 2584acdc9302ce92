package pool

import (
	"sync/atomic"
	"time"
)

// reclaimLoop periodically closes connections that have been idle for
// longer than MaxIdleDuration. It exits as soon as Close is called.
func (p *Pool) reclaimLoop() {
	defer close(p.reclaimDone)

	ticker := time.NewTicker(p.config.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopReclaim:
			log.Debug("idle reclaimer stopped")
			return
		case now := <-ticker.C:
			p.reclaimIdle(now)
		}
	}
}

// reclaimIdle closes idle connections older than MaxIdleDuration, oldest
// first, without letting the established connections fall below MinSize. It returns the
// number of connections closed.
func (p *Pool) reclaimIdle(now time.Time) int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}

	// Reserved slots may still fail to open, so only established
	// connections count toward MinSize.
	budget := p.store.established() - p.config.MinSize
	var expired []Connection
	if budget > 0 {
		expired = p.store.removeIdleMatching(func(ic idleConn) bool {
			if budget == 0 || now.Sub(ic.lastUsed) <= p.config.MaxIdleDuration {
				return false
			}
			budget--
			return true
		})
		p.store.decLive(len(expired))
	}
	p.mu.Unlock()

	for _, conn := range expired {
		p.closeConn(conn, "idle timeout")
	}

	if n := len(expired); n > 0 {
		atomic.AddUint64(&p.reclaimCount, uint64(n))
		PoolReclaimedTotal.Add(uint64(n))
		log.WithField("closed", n).Debug("reclaimed idle connections")
	}
	UpdateMetrics(p.Stats())
	return len(expired)
}
