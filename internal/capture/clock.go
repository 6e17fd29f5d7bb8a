package capture

import (
	"sync"
	"time"
)

// Timer cancels a scheduled callback.
type Timer interface {
	// Stop prevents future invocations. For periodic timers it also waits
	// for an in-flight invocation, so it must not be called from inside the
	// timer's own callback.
	Stop() bool
}

// Clock schedules the controller's periodic work and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (systemClock) Every(d time.Duration, fn func()) Timer {
	t := &periodic{quit: make(chan struct{}), done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-ticker.C:
				select {
				case <-t.quit:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

type periodic struct {
	once sync.Once
	quit chan struct{}
	done chan struct{}
}

func (p *periodic) Stop() bool {
	stopped := false
	p.once.Do(func() {
		close(p.quit)
		stopped = true
	})
	<-p.done
	return stopped
}
