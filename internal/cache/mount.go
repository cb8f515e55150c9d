package cache

import "sync/atomic"

// Mount guards one view's loads. Results that arrive after Unmount are
// dropped; the requests themselves are not aborted.
type Mount struct {
	unmounted atomic.Bool
}

func NewMount() *Mount {
	return &Mount{}
}

func (m *Mount) Unmount() {
	m.unmounted.Store(true)
}

// Active is true for a nil mount, so callers without a view can pass nil.
func (m *Mount) Active() bool {
	return m == nil || !m.unmounted.Load()
}
