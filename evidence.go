package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yyyoichi/watermark_svd/internal/sideinfo"
)

var ErrExists = sideinfo.ErrExists

// Evidence is the saved record of one detection.
type Evidence struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Metrics   Metrics   `json:"metrics"`
	Threshold float64   `json:"pcc_threshold"`
	Passed    bool      `json:"passed"`
	RecordID  string    `json:"sideinfo_id,omitempty"`
	// PNG copies of the compared images.
	Original  []byte `json:"original_png"`
	Extracted []byte `json:"extracted_png"`
	Suspect   []byte `json:"suspect_png,omitempty"`
}

// EvidenceStore keeps detection evidence. Evidence is never overwritten.
type EvidenceStore struct {
	storage Storage
	now     func() time.Time
}

func NewEvidenceStore(storage Storage) *EvidenceStore {
	return &EvidenceStore{storage: storage, now: time.Now}
}

// Record builds and saves the evidence of one detection result.
func (s *EvidenceStore) Record(ctx context.Context, r DetectionResult, original, extracted, suspect image.Image, recordID string) (string, error) {
	ev := &Evidence{
		Metrics:   r.Metrics,
		Threshold: r.Threshold,
		Passed:    r.IsMatch,
		RecordID:  recordID,
	}
	var err error
	if ev.Original, err = Encode(original); err != nil {
		return "", err
	}
	if ev.Extracted, err = Encode(extracted); err != nil {
		return "", err
	}
	if suspect != nil {
		if ev.Suspect, err = Encode(suspect); err != nil {
			return "", err
		}
	}
	return s.Save(ctx, ev)
}

// Save assigns an id of the form <unix seconds>_<8 hex> and a creation time
// when unset, then writes ev once. An existing id fails with ErrExists.
func (s *EvidenceStore) Save(ctx context.Context, ev *Evidence) (string, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if ev.ID == "" {
		hex := strings.ReplaceAll(uuid.NewString(), "-", "")
		ev.ID = fmt.Sprintf("%d_%s", ev.CreatedAt.Unix(), hex[:8])
	}
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "", err
	}
	if err := s.storage.Put(ctx, ev.ID, data); err != nil {
		return "", err
	}
	return ev.ID, nil
}

func (s *EvidenceStore) Load(ctx context.Context, id string) (*Evidence, error) {
	data, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var ev Evidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return &ev, nil
}

// List returns the ids of every saved evidence.
func (s *EvidenceStore) List(ctx context.Context) ([]string, error) {
	return s.storage.List(ctx)
}
