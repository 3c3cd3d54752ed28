package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pridiuksson/ninegrid/internal/app/ports"
	"github.com/pridiuksson/ninegrid/internal/debugbus"
)

const (
	// SlotCount is the fixed grid size. Exactly nine slots exist at all times.
	SlotCount = 9
	// MaxUploadBytes caps a single image upload at 5 MiB.
	MaxUploadBytes = 5 << 20
	// ExportFilename is the download name of an exported grid document.
	ExportFilename = "nine-picture-grid.json"
)

var (
	// ErrValidation indicates a client-side rejection made before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrList indicates the bucket listing call failed.
	ErrList = errors.New("list objects failed")
	// ErrUpload indicates the remote upload call failed.
	ErrUpload = errors.New("upload failed")
	// ErrRemove indicates the remote removal call failed.
	ErrRemove = errors.New("remove failed")
	// ErrURLResolution indicates the public URL for an object could not be resolved.
	ErrURLResolution = errors.New("public url resolution failed")
)

// Upload is the validated payload of a slot image upload.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Snapshot is the renderable grid state handed to the view layer. Images
// always has exactly SlotCount entries; empty slots are nil.
type Snapshot struct {
	Images       []*string `json:"images"`
	Text         string    `json:"text"`
	Uploading    []int     `json:"uploading"`
	Placeholders []string  `json:"placeholders"`
}

type exportDocument struct {
	Images []*string `json:"images"`
	Text   string    `json:"text"`
}

type gridState struct {
	images      [SlotCount]string
	text        string
	uploading   [SlotCount]int
	generations [SlotCount]uint64
}

// GridService keeps the nine-slot image array consistent with the remote
// object store and serializes mutation per slot. State is held per identity;
// the store remains the source of truth for images, text lives only in
// memory until exported.
type GridService struct {
	store  ports.ObjectStore
	bucket string
	bus    *debugbus.Bus
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	grids map[string]*gridState
}

// NewGridService constructs the grid service over the given store bucket.
func NewGridService(store ports.ObjectStore, bucket string, bus *debugbus.Bus, log *slog.Logger) *GridService {
	return &GridService{
		store:  store,
		bucket: bucket,
		bus:    bus,
		log:    log,
		now:    time.Now,
		grids:  make(map[string]*gridState),
	}
}

// EnsureBucket creates the backing bucket if the store does not have it yet.
func (s *GridService) EnsureBucket(ctx context.Context) error {
	buckets, err := s.store.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("%w: list buckets: %v", ErrList, err)
	}
	if slices.Contains(buckets, s.bucket) {
		return nil
	}
	if err := s.store.CreateBucket(ctx, s.bucket, true); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.bus.Info("created storage bucket", map[string]any{"bucket": s.bucket})
	return nil
}

// Reconcile rebuilds the image array for the given identity from a full
// bucket listing. The result always has exactly SlotCount entries. A listing
// failure propagates; a URL resolution failure leaves that slot empty. When
// two objects map to the same slot the newest timestamp wins.
func (s *GridService) Reconcile(ctx context.Context, userID string) (Snapshot, error) {
	objects, err := s.store.List(ctx, s.bucket)
	if err != nil {
		s.bus.Error("failed to list bucket objects", map[string]any{"bucket": s.bucket, "error": err.Error()})
		return Snapshot{}, fmt.Errorf("%w: %v", ErrList, err)
	}

	var winners [SlotCount]*objectRef
	for _, obj := range objects {
		ref, ok := parseObjectName(obj.Name, userID)
		if !ok {
			continue
		}
		if winners[ref.slot] == nil || ref.newerThan(*winners[ref.slot]) {
			r := ref
			winners[ref.slot] = &r
		}
	}

	var images [SlotCount]string
	matched := 0
	for i, ref := range winners {
		if ref == nil {
			continue
		}
		publicURL, err := s.store.PublicURL(s.bucket, ref.name)
		if err != nil {
			s.bus.Error("failed to resolve public url", map[string]any{"object": ref.name, "error": err.Error()})
			continue
		}
		images[i] = publicURL
		matched++
	}

	s.mu.Lock()
	g := s.grid(userID)
	g.images = images
	snap := snapshotOf(g)
	s.mu.Unlock()

	s.bus.Info("grid reconciled", map[string]any{
		"user":    identityLabel(userID),
		"listed":  len(objects),
		"matched": matched,
	})
	return snap, nil
}

// AddImage validates and uploads a file into a slot, then resolves its
// public URL and writes it into the in-memory array. A start notification is
// always paired with exactly one finish notification. A completion carrying
// a stale slot generation does not overwrite the slot.
func (s *GridService) AddImage(ctx context.Context, userID string, index int, up Upload) (string, error) {
	if index < 0 || index >= SlotCount {
		return "", fmt.Errorf("%w: slot index %d out of range", ErrValidation, index)
	}
	if !strings.HasPrefix(up.ContentType, "image/") {
		s.bus.Error("rejected non-image upload", map[string]any{"slot": index, "contentType": up.ContentType})
		return "", fmt.Errorf("%w: content type %q is not an image", ErrValidation, up.ContentType)
	}
	if len(up.Data) > MaxUploadBytes {
		s.bus.Error("rejected oversized upload", map[string]any{"slot": index, "size": len(up.Data), "max": MaxUploadBytes})
		return "", fmt.Errorf("%w: file size %d exceeds %d bytes", ErrValidation, len(up.Data), MaxUploadBytes)
	}

	s.mu.Lock()
	g := s.grid(userID)
	g.generations[index]++
	generation := g.generations[index]
	g.uploading[index]++
	s.mu.Unlock()

	s.bus.Info("upload started", map[string]any{"slot": index, "file": up.Filename, "size": len(up.Data)})
	defer func() {
		s.mu.Lock()
		g.uploading[index]--
		s.mu.Unlock()
		s.bus.Info("upload finished", map[string]any{"slot": index})
	}()

	name := formatObjectName(userID, index, s.now())
	err := s.store.Upload(ctx, s.bucket, name, up.Data, ports.UploadOptions{
		ContentType:  up.ContentType,
		CacheControl: "3600",
		Upsert:       true,
	})
	if err != nil {
		s.bus.Error("upload failed", map[string]any{"slot": index, "object": name, "error": err.Error()})
		return "", fmt.Errorf("%w: put %s: %v", ErrUpload, name, err)
	}

	publicURL, err := s.store.PublicURL(s.bucket, name)
	if err != nil {
		s.bus.Error("public url resolution failed", map[string]any{"object": name, "error": err.Error()})
		return "", fmt.Errorf("%w: %s: %v", ErrURLResolution, name, err)
	}

	s.mu.Lock()
	stale := g.generations[index] != generation
	if !stale {
		g.images[index] = publicURL
	}
	s.mu.Unlock()

	if stale {
		s.bus.Warning("discarded stale upload result", map[string]any{"slot": index, "object": name})
		return publicURL, nil
	}
	s.bus.Info("image uploaded", map[string]any{"slot": index, "object": name, "url": publicURL})
	return publicURL, nil
}

// RemoveImage clears a slot. The object name is derived from the stored
// URL's final path segment and removed remotely; the local slot is cleared
// even when the remote removal fails. That asymmetry favors responsiveness
// over consistency and is intentional; the remote failure is only logged.
// A completion carrying a stale slot generation does not clear the slot.
func (s *GridService) RemoveImage(ctx context.Context, userID string, index int) error {
	if index < 0 || index >= SlotCount {
		return fmt.Errorf("%w: slot index %d out of range", ErrValidation, index)
	}

	s.mu.Lock()
	g := s.grid(userID)
	current := g.images[index]
	if current == "" {
		s.mu.Unlock()
		return nil
	}
	// Bump the generation so an older in-flight upload cannot resurrect the slot.
	g.generations[index]++
	generation := g.generations[index]
	s.mu.Unlock()

	name, err := objectNameFromURL(current)
	if err != nil {
		s.bus.Warning("could not derive object name from url", map[string]any{"slot": index, "url": current, "error": err.Error()})
	} else if err := s.store.Remove(ctx, s.bucket, []string{name}); err != nil {
		s.bus.Error("remote removal failed, clearing slot locally anyway", map[string]any{"slot": index, "object": name, "error": err.Error()})
		s.log.WarnContext(ctx, "remote removal failed", "slot", index, "object", name, "error", err)
	}

	s.mu.Lock()
	stale := g.generations[index] != generation
	if !stale {
		g.images[index] = ""
	}
	s.mu.Unlock()

	if stale {
		s.bus.Warning("discarded stale remove result", map[string]any{"slot": index})
		return nil
	}
	s.bus.Info("slot cleared", map[string]any{"slot": index})
	return nil
}

// SetText replaces the free-text description. It lives only in memory.
func (s *GridService) SetText(userID, text string) {
	s.mu.Lock()
	s.grid(userID).text = text
	s.mu.Unlock()
}

// Snapshot returns the current renderable state without touching the store.
func (s *GridService) Snapshot(userID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.grid(userID))
}

// Export serializes the current state as the downloadable grid document.
func (s *GridService) Export(userID string) ([]byte, error) {
	s.mu.Lock()
	g := s.grid(userID)
	doc := exportDocument{Images: imagePointers(g.images), Text: g.text}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal grid document: %w", err)
	}
	return data, nil
}

// grid returns the per-identity state, creating it on first use. Callers
// must hold s.mu.
func (s *GridService) grid(userID string) *gridState {
	g, ok := s.grids[userID]
	if !ok {
		g = &gridState{}
		s.grids[userID] = g
	}
	return g
}

func snapshotOf(g *gridState) Snapshot {
	uploading := make([]int, 0, SlotCount)
	for i, count := range g.uploading {
		if count > 0 {
			uploading = append(uploading, i)
		}
	}
	placeholders := make([]string, SlotCount)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("Picture %d", i+1)
	}
	return Snapshot{
		Images:       imagePointers(g.images),
		Text:         g.text,
		Uploading:    uploading,
		Placeholders: placeholders,
	}
}

func imagePointers(images [SlotCount]string) []*string {
	out := make([]*string, SlotCount)
	for i, img := range images {
		if img == "" {
			continue
		}
		value := img
		out[i] = &value
	}
	return out
}

func identityLabel(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}
