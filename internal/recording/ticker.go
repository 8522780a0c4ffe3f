package recording

import "sync"

// tickLoop advances the elapsed counter of one session generation.
type tickLoop struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *Session) startTicks(gen uint64) *tickLoop {
	t := s.clock.NewTicker(s.interval)
	l := &tickLoop{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(l.done)
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-t.C():
				s.tick(gen)
			}
		}
	}()
	return l
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.elapsed++
	elapsed := s.elapsed
	s.mu.Unlock()

	s.notifyElapsed(elapsed)
}

// halt stops the loop and waits for it to exit. Nil-safe and idempotent.
func (l *tickLoop) halt() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.stop) })
	<-l.done
}
