package series

import (
	"context"
	"sync"

	"dicomseries/internal/models"
)

// Decoder turns one slice file into a SliceRecord. Implementations must be
// safe for concurrent use; Load calls Decode from several goroutines.
type Decoder interface {
	// Probe reports whether the decoder can run on this platform. It is
	// called once by Init, never per file.
	Probe() error

	// Decode reads one file. Files that are not slices at all should be
	// reported with an error wrapping ErrNotSlice so they are skipped.
	Decode(ctx context.Context, path string) (models.SliceRecord, error)
}

// session is the process-wide decoder capability. It is written by Init and
// Shutdown and read by every Load.
var session struct {
	mu      sync.RWMutex
	active  bool
	decoder Decoder
	err     error
}

// Init installs dec as the process decoder and runs its capability probe
// once, caching the outcome. Call it at startup before any Load and pair it
// with Shutdown. Calling Init again replaces the previous decoder.
// The probe error, if any, is returned and also reported by every later
// Load as KindUnavailable.
func Init(dec Decoder) error {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.active = true
	session.decoder = dec
	session.err = nil

	if dec == nil {
		session.err = newError(KindUnavailable, "init", nil, "no decoder installed")
		return session.err
	}
	if err := dec.Probe(); err != nil {
		session.err = newError(KindUnavailable, "init", err, "decoder probe failed")
		return session.err
	}
	return nil
}

// Shutdown releases the process decoder. Loads after Shutdown fail with
// KindUnavailable until Init is called again.
func Shutdown() {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.active = false
	session.decoder = nil
	session.err = nil
}

// currentDecoder returns the installed decoder or the cached capability error
func currentDecoder() (Decoder, error) {
	session.mu.RLock()
	defer session.mu.RUnlock()

	if !session.active {
		return nil, newError(KindUnavailable, "init", nil, "decoder not initialized")
	}
	if session.err != nil {
		return nil, session.err
	}
	return session.decoder, nil
}
