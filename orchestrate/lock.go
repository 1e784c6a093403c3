package orchestrate

import (
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// ErrLockContention is returned when another run already holds the
// exclusive lock (§4.G, exit code 2 per §6).
var ErrLockContention = errors.New("another run active")

// acquireLock takes an exclusive advisory lock on var/apt-mirror.lock,
// refusing to block: contention is a hard failure, not something a second
// run waits out (§3 invariant 4, §6 exit code 2).
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquiring lock")
	}
	if !ok {
		return nil, ErrLockContention
	}
	return lock, nil
}

func releaseLock(lock *flock.Flock) {
	if lock != nil {
		lock.Unlock()
	}
}
