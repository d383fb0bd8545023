package sideinfo

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yyyoichi/watermark_svd/internal/phash"
)

// Match is a record found by fingerprint.
type Match struct {
	Record   *Record
	Distance int
}

// Store persists records and keeps a fingerprint catalog over them.
type Store struct {
	storage Storage
	index   *phash.Index

	mu      sync.Mutex // keeps the catalog in step with Save and Delete
	skipped []string
}

// Open loads every stored record into the fingerprint catalog. Records that
// fail to decode are left out of the catalog and reported by Skipped; Load
// still returns their decoding error.
func Open(ctx context.Context, storage Storage) (*Store, error) {
	s := &Store{storage: storage, index: phash.NewIndex()}
	ids, err := storage.List(ctx)
	if err != nil {
		return nil, err
	}

	var records []*Record
	for _, id := range ids {
		data, err := storage.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r, err := Unmarshal(data)
		if err != nil || r.ID != id {
			s.skipped = append(s.skipped, id)
			continue
		}
		records = append(records, r)
	}
	// catalog ties resolve to the oldest record
	slices.SortStableFunc(records, func(a, b *Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, r := range records {
		s.indexRecord(r)
	}
	return s, nil
}

func (s *Store) indexRecord(r *Record) {
	if r.Fingerprint == "" {
		return
	}
	if h, err := phash.Parse(r.Fingerprint); err == nil {
		s.index.Put(r.ID, h)
	}
}

// Skipped lists ids that could not be decoded when the store was opened.
func (s *Store) Skipped() []string {
	return slices.Clone(s.skipped)
}

// Len returns the number of catalogued fingerprints.
func (s *Store) Len() int {
	return s.index.Len()
}

// Save assigns an id and creation time when unset, then writes r once.
// An existing id fails with ErrExists.
func (s *Store) Save(ctx context.Context, r *Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := ValidID(r.ID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	data, err := Marshal(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Put(ctx, r.ID, data); err != nil {
		return "", err
	}
	s.indexRecord(r)
	return r.ID, nil
}

// Load reads and validates one record.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	data, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if r.ID != id {
		return nil, fmt.Errorf("%w: stored id %q under %q", ErrMalformedRecord, r.ID, id)
	}
	return r, nil
}

// FindByFingerprint returns the record whose fingerprint is nearest to fp
// within tolerance bits. No candidate is not an error.
func (s *Store) FindByFingerprint(ctx context.Context, fp phash.Hash, tolerance int) (Match, bool, error) {
	for {
		id, d, ok := s.index.Nearest(fp, tolerance)
		if !ok {
			return Match{}, false, nil
		}
		r, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedRecord) {
			// removed or corrupted behind our back
			s.index.Remove(id)
			continue
		}
		if err != nil {
			return Match{}, false, err
		}
		return Match{Record: r, Distance: d}, true, nil
	}
}

// Delete removes a record and its catalog entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}
	s.index.Remove(id)
	return nil
}

// List returns every decodable record, oldest first.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	ids, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		r, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedRecord) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	slices.SortStableFunc(records, func(a, b *Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return records, nil
}
