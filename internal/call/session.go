package call

import "time"

// Session is the single in-flight call. It is owned exclusively by the
// controller while active; observers only ever see copies.
type Session struct {
	// ID is an opaque token. The adapter's session handle when it supplies
	// one, otherwise generated locally.
	ID string

	// HistoryID keys this session's history entry. It is fixed at creation
	// and survives ID being replaced by an adapter handle, so a provisional
	// entry written before the handle is known can still be amended.
	HistoryID string

	Direction Direction

	// RemoteAddress is the far end's address (extension or URI user part).
	RemoteAddress string

	// RemoteDisplayName is the far end's display name, if known.
	RemoteDisplayName string

	// StartedAt is when the attempt began (dial time or invite arrival).
	StartedAt time.Time

	// EstablishedAt is zero until the call is established.
	EstablishedAt time.Time

	IsMuted  bool
	IsOnHold bool

	State State
}

// Established reports whether the session reached the established state at
// some point (it may have since terminated).
func (s *Session) Established() bool {
	return !s.EstablishedAt.IsZero()
}

// DurationSeconds returns whole seconds since EstablishedAt, or 0 if the
// session was never established.
func (s *Session) DurationSeconds(now time.Time) int {
	if s.EstablishedAt.IsZero() {
		return 0
	}
	return int(now.Sub(s.EstablishedAt) / time.Second)
}

// Clone returns a copy safe to hand to observers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
