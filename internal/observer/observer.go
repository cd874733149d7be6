// Package observer implements the notification fan-out described in
// spec.md §4.8: every ledger entry a Job saves is delivered, synchronously
// and in save order, to every registered Observer.
package observer

import (
	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/sirupsen/logrus"
)

// Observer receives completed ledger entries as a Job saves them.
type Observer interface {
	// Notify is called once per saved ReplicationItem, in the order
	// records were consumed from the source's change set.
	Notify(item *catalog.ReplicationItem)
}

// Set is a deduplicated collection of Observers, registered once at Job
// construction time. Equality is identity-based: the same Observer value
// registered twice is only notified once, per spec.md §9 ("insertion-order
// deduplication on identity" when handles are not otherwise comparable).
type Set struct {
	order []Observer
	seen  map[Observer]struct{}
	log   *logrus.Entry
}

// NewSet builds a Set from observers, deduplicating by identity and
// preserving first-seen order.
func NewSet(log *logrus.Entry, observers ...Observer) *Set {
	s := &Set{seen: make(map[Observer]struct{}, len(observers)), log: log}
	for _, o := range observers {
		s.Add(o)
	}
	return s
}

// Add registers o if it has not already been registered.
func (s *Set) Add(o Observer) {
	if o == nil {
		return
	}
	if _, ok := s.seen[o]; ok {
		return
	}
	s.seen[o] = struct{}{}
	s.order = append(s.order, o)
}

// NotifyAll delivers item to every registered observer in registration
// order. An observer that panics is recovered, logged, and does not
// prevent the remaining observers from being called — the Open Question
// in spec.md §9 resolved as "log and continue" (see SPEC_FULL.md §10.1).
func (s *Set) NotifyAll(item *catalog.ReplicationItem) {
	for _, o := range s.order {
		s.notifyOne(o, item)
	}
}

func (s *Set) notifyOne(o Observer, item *catalog.ReplicationItem) {
	defer func() {
		if r := recover(); r != nil {
			if s.log != nil {
				s.log.WithField("panic", r).Warnf("observer %T panicked, continuing fan-out", o)
			}
		}
	}()
	o.Notify(item)
}
