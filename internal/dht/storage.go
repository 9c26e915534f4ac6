package dht

import (
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/codec/cborcanon"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// storedRecord is a signed (key, value) entry accepted into local DHT
// storage: the signature covers key || value || expires_at, so neither the
// value nor its expiry can be tampered with by a forwarding node without
// invalidating the signature (§4.3). The publisher is recorded for
// accounting but deliberately left out of the signed payload, since it is
// the verifier's own lookup key and not something the signer commits to.
type storedRecord struct {
	Key       wire.NodeId `cbor:"key"`
	Value     []byte      `cbor:"value"`
	Signature []byte      `cbor:"sig"`
	Publisher wire.NodeId `cbor:"publisher"`
	StoredAt  time.Time   `cbor:"stored_at"`
	ExpiresAt time.Time   `cbor:"expires_at"`
}

// StoreSigningBytes returns the canonical CBOR encoding of the fields a
// store-and-forward Put signature covers: key || value || expires_at. Both
// the router (when it signs a forwarded message before handing it to Put)
// and Storage.Put (when it verifies that signature) must derive the exact
// same bytes, so this is the single place that encoding is produced (§4.3).
func StoreSigningBytes(key wire.NodeId, value []byte, expiresAt time.Time) ([]byte, error) {
	return cborcanon.Marshal(struct {
		Key       wire.NodeId `cbor:"key"`
		Value     []byte      `cbor:"value"`
		ExpiresAt int64       `cbor:"expires_at"`
	}{Key: key, Value: value, ExpiresAt: expiresAt.Unix()})
}

func (r *storedRecord) signingBytes() ([]byte, error) {
	return StoreSigningBytes(r.Key, r.Value, r.ExpiresAt)
}

func (r *storedRecord) isExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// Storage is the quota-bounded key/value store every node offers to the
// swarm: a node Put()s the values it's responsible for custodianship of
// (§3, §4.3), with total byte and key-count quotas and a per-value size cap.
type Storage struct {
	mu          sync.RWMutex
	records     map[wire.NodeId]*storedRecord
	totalBytes  int
	maxBytes    int
	maxKeys     int
	maxValue    int
	routingTbl  *RoutingTable
	localID     wire.NodeId
}

// NewStorage creates an empty Storage bound to rt for responsibility checks.
func NewStorage(localID wire.NodeId, rt *RoutingTable) *Storage {
	return &Storage{
		records:    make(map[wire.NodeId]*storedRecord),
		maxBytes:   constants.MaxStorageBytes,
		maxKeys:    constants.MaxStorageKeys,
		maxValue:   constants.MaxValueSize,
		routingTbl: rt,
		localID:    localID,
	}
}

// Put validates quotas and the key||value||expires_at signature, then
// stores the record, evicting nothing automatically: once quotas are hit,
// Put fails with CodeStorageFull/CodeTooManyKeys so the caller (the
// router's store-and-forward path) can pick a different custodian (§4.3).
func (s *Storage) Put(key wire.NodeId, value, signature []byte, publisher wire.NodeId, verifier wire.Verifier, expiresAt time.Time) error {
	if len(value) > s.maxValue {
		return wire.NewDHTError(wire.CodeValueTooLarge, "value exceeds max size")
	}

	rec := &storedRecord{Key: key, Value: value, Signature: signature, Publisher: publisher, StoredAt: time.Now(), ExpiresAt: expiresAt}
	signed, err := rec.signingBytes()
	if err != nil {
		return err
	}
	if verifier != nil {
		if err := verifier.Verify(publisher, signed, signature); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[key]
	if !exists && len(s.records) >= s.maxKeys {
		return wire.NewDHTError(wire.CodeTooManyKeys, "storage key quota exhausted")
	}

	newTotal := s.totalBytes + len(value)
	if exists {
		newTotal -= len(existing.Value)
	}
	if newTotal > s.maxBytes {
		return wire.NewDHTError(wire.CodeStorageFull, "storage byte quota exhausted")
	}

	if exists {
		s.totalBytes -= len(existing.Value)
	}
	s.records[key] = rec
	s.totalBytes += len(value)
	return nil
}

// Get returns the stored value for key, if present and unexpired.
func (s *Storage) Get(key wire.NodeId) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok || rec.isExpired() {
		return nil, false
	}
	return append([]byte(nil), rec.Value...), true
}

// IsResponsible reports whether the local node is among the k nodes closest
// to key in the routing table, i.e. whether it should accept a Put for it
// rather than forward the request onward (§3).
func (s *Storage) IsResponsible(key wire.NodeId, k int) bool {
	closest := s.routingTbl.FindClosestNodes(key, k)
	localDist := s.localID.XOR(key)
	for _, n := range closest {
		if localDist.Less(n.ID.XOR(key)) {
			return true
		}
	}
	return len(closest) < k
}

// SweepExpired removes every expired record, returning the count removed.
func (s *Storage) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if rec.isExpired() {
			s.totalBytes -= len(rec.Value)
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// KeyCount returns the current number of stored keys.
func (s *Storage) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TotalBytes returns the current aggregate stored byte count.
func (s *Storage) TotalBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalBytes
}
