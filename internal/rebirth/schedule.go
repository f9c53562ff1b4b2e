package rebirth

import "time"

// Stopper is the handle of a scheduled callback. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// Scheduler runs f once after d on some goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// TimerScheduler is backed by time.AfterFunc.
var TimerScheduler Scheduler = timerScheduler{}

// ManualScheduler queues callbacks until Run or RunAll is called. Used by
// tests and by callers that drive the opponent themselves.
type ManualScheduler struct {
	queue []*manualTask
}

type manualTask struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *manualTask) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	t := &manualTask{delay: d, f: f}
	m.queue = append(m.queue, t)
	return t
}

// Pending counts queued callbacks, stopped ones included.
func (m *ManualScheduler) Pending() int { return len(m.queue) }

// Run fires the oldest queued callback, even a stopped one, so tests can
// exercise the fire-time guards. It reports whether anything ran.
func (m *ManualScheduler) Run() bool {
	if len(m.queue) == 0 {
		return false
	}
	t := m.queue[0]
	m.queue = m.queue[1:]
	t.f()
	return true
}

// RunAll fires callbacks until the queue is empty, including ones queued meanwhile.
func (m *ManualScheduler) RunAll() int {
	n := 0
	for m.Run() {
		n++
	}
	return n
}
