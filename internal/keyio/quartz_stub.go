//go:build !darwin

package keyio

// NewEmitter returns the platform key-event emitter. Only darwin has one;
// everywhere else the caller gets ErrUnavailable and runs degraded.
func NewEmitter() (Emitter, error) {
	return nil, ErrUnavailable
}
