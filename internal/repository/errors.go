package repository

import (
	"errors"
	"time"
)

// Sentinel errors distinguishing which referenced row was missing or inconsistent.
var (
	ErrTopicNotFound    = errors.New("topic not found")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrParentNotFound   = errors.New("parent entry not found")
	ErrCrossTopicParent = errors.New("parent entry belongs to another topic")
	ErrEntryDeleted     = errors.New("entry has been deleted")
)

// QueryObserver receives timing for named repository queries.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveDBQuery(string, time.Duration) {}

func observe(obs QueryObserver, label string) func() {
	start := time.Now()
	return func() {
		obs.ObserveDBQuery(label, time.Since(start))
	}
}
