package quota

import (
	"fmt"
	"time"
)

// BucketLength is the fixed width of one rate-limit bucket. Buckets are
// independent: crossing the boundary resets capacity with no migration step.
const BucketLength = 24 * time.Hour

// Bucket computes the day bucket for the supplied unix timestamp.
func Bucket(unixSeconds int64) uint64 {
	if unixSeconds < 0 {
		return 0
	}
	return uint64(unixSeconds) / uint64(BucketLength/time.Second)
}

type counterRecord struct {
	Count uint32
}

// StoreState describes the minimal KV functionality the quota store needs from
// the surrounding state implementation.
type StoreState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Store persists per-(identity, day bucket) grant counters. Counters are
// created implicitly at zero on first access and never migrate across buckets;
// stale buckets are harmless and may be pruned as an optimisation.
type Store struct {
	state StoreState
}

func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("quota: store not initialised")
	}
	return s.state, nil
}

// Count returns the number of grants recorded for the identity in the bucket.
func (s *Store) Count(bucket uint64, addr []byte) (uint32, error) {
	state, err := s.withState()
	if err != nil {
		return 0, err
	}
	if len(addr) == 0 {
		return 0, fmt.Errorf("quota: address required")
	}
	var stored counterRecord
	ok, err := state.KVGet(counterKey(bucket, addr), &stored)
	if err != nil {
		return 0, fmt.Errorf("quota: load counter: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return stored.Count, nil
}

// Increment bumps the counter for the identity in the bucket and returns the
// new count.
func (s *Store) Increment(bucket uint64, addr []byte) (uint32, error) {
	state, err := s.withState()
	if err != nil {
		return 0, err
	}
	count, err := s.Count(bucket, addr)
	if err != nil {
		return 0, err
	}
	next := counterRecord{Count: count + 1}
	if err := state.KVPut(counterKey(bucket, addr), next); err != nil {
		return 0, fmt.Errorf("quota: persist counter: %w", err)
	}
	return next.Count, nil
}

// Decrement undoes one increment. It exists solely as the compensation step
// for the configurable dry-pool policy; counters never go below zero.
func (s *Store) Decrement(bucket uint64, addr []byte) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	count, err := s.Count(bucket, addr)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	record := counterRecord{Count: count - 1}
	if err := state.KVPut(counterKey(bucket, addr), record); err != nil {
		return fmt.Errorf("quota: persist counter: %w", err)
	}
	return nil
}

// Prune removes the counter for the identity in the bucket. Optional cleanup,
// never required for correctness.
func (s *Store) Prune(bucket uint64, addr []byte) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if err := state.KVDelete(counterKey(bucket, addr)); err != nil {
		return fmt.Errorf("quota: prune counter: %w", err)
	}
	return nil
}
