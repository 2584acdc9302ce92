package pool

import "time"

// idleConn is a pooled connection together with the time it was last
// handed back to the pool.
type idleConn struct {
	conn     Connection
	lastUsed time.Time
}

// store holds the idle connections in FIFO order and the live count
// (idle + checked out + creations in flight). creating counts the slots
// reserved for opens that have not returned yet; they are not connections
// until the factory succeeds.
// It does no locking of its own; every method must be called with Pool.mu held.
type store struct {
	idle     []idleConn
	live     int
	creating int
}

// tryTakeIdle removes and returns the oldest idle connection.
func (s *store) tryTakeIdle() (Connection, bool) {
	if len(s.idle) == 0 {
		return nil, false
	}
	ic := s.idle[0]
	s.idle[0] = idleConn{}
	s.idle = s.idle[1:]
	return ic.conn, true
}

// addIdle appends conn to the tail of the idle list stamped with now.
func (s *store) addIdle(conn Connection, now time.Time) {
	s.idle = append(s.idle, idleConn{conn: conn, lastUsed: now})
}

// removeIdleMatching walks the idle list oldest first and removes every
// entry for which match returns true. The order of the survivors is kept.
func (s *store) removeIdleMatching(match func(idleConn) bool) []Connection {
	var removed []Connection
	kept := s.idle[:0]
	for _, ic := range s.idle {
		if match(ic) {
			removed = append(removed, ic.conn)
			continue
		}
		kept = append(kept, ic)
	}
	// clear the tail so removed connections can be collected
	for i := len(kept); i < len(s.idle); i++ {
		s.idle[i] = idleConn{}
	}
	s.idle = kept
	return removed
}

// drain removes and returns all idle connections.
func (s *store) drain() []Connection {
	conns := make([]Connection, 0, len(s.idle))
	for _, ic := range s.idle {
		conns = append(conns, ic.conn)
	}
	s.idle = nil
	return conns
}

func (s *store) numIdle() int { return len(s.idle) }

func (s *store) incLive() { s.live++ }

// reserve counts a slot for an open that is about to start.
func (s *store) reserve() {
	s.live++
	s.creating++
}

// settle ends a reservation. A failed open gives the slot back.
func (s *store) settle(ok bool) {
	s.creating--
	if !ok {
		s.decLive(1)
	}
}

// established is the number of live connections that actually exist.
func (s *store) established() int { return s.live - s.creating }

func (s *store) decLive(n int) {
	s.live -= n
	if s.live < 0 {
		log.WithField("live", s.live).Error("live connection count went negative")
		s.live = 0
	}
}
