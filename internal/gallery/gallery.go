// Package gallery holds the in-memory set of known identity embeddings used
// for face matching. Identities are loaded from a directory of labeled images
// (filename stem = label) and matched by cosine distance.
package gallery

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kozaktomas/facegate/internal/vision"
)

// Unknown is the label returned when no identity matches.
const Unknown = "Unknown"

// Enrollment validation failures. These are expected outcomes, not faults.
var (
	ErrNoFace        = errors.New("no face found in image")
	ErrMultipleFaces = errors.New("more than one face found in image")
)

// Detector detects faces and computes their embeddings.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*vision.DetectResponse, error)
}

// Cache is an optional store for computed embeddings keyed by identity name
// and image content hash. A nil cache is valid and simply means every load
// recomputes embeddings through the detector.
type Cache interface {
	Get(ctx context.Context, name, imageSHA string) ([]float32, bool, error)
	Put(ctx context.Context, name, imageSHA string, embedding []float32) error
	DeleteByName(ctx context.Context, name string) error
}

// Entry is a single known identity.
type Entry struct {
	Name      string
	Embedding []float32
}

// Gallery is the in-memory set of known identities.
//
// Match uses first-match-within-tolerance in insertion order, not
// nearest-neighbor. For an access-control gallery this is a known limitation:
// with tolerance 0.6 a look-alike enrolled earlier can shadow the true
// identity. The optional HNSW index switches the policy to explicit
// nearest-within-tolerance without changing the external contract.
type Gallery struct {
	mu        sync.RWMutex
	dir       string
	tolerance float64
	detector  Detector
	cache     Cache
	entries   []Entry
	index     *hnswIndex // nil unless EnableHNSW was called
}

// New creates an empty gallery backed by the given known-faces directory.
func New(dir string, tolerance float64, detector Detector) *Gallery {
	return &Gallery{
		dir:       dir,
		tolerance: tolerance,
		detector:  detector,
	}
}

// SetCache attaches an embedding cache.
func (g *Gallery) SetCache(c Cache) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = c
}

// EnableHNSW switches matching to the nearest-neighbor index. The index is
// built from the current entries and kept in sync by Load, Register and
// Remove.
func (g *Gallery) EnableHNSW() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index = newHNSWIndex()
	g.index.build(g.entries)
}

// Load scans the known-faces directory and replaces the entire in-memory
// gallery. Images that fail to yield a usable embedding are skipped with a
// warning. Returns the number of identities loaded. The progress callback may
// be nil.
func (g *Gallery) Load(ctx context.Context, progress func(done, total int)) (int, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating known faces directory: %w", err)
	}

	dirEntries, err := os.ReadDir(g.dir)
	if err != nil {
		return 0, fmt.Errorf("reading known faces directory: %w", err)
	}

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, de.Name())
		}
	}

	// Build the replacement set outside the lock so matching stays available
	// during a slow reload.
	entries := make([]Entry, 0, len(files))
	for i, name := range files {
		label := strings.TrimSuffix(name, filepath.Ext(name))
		emb, err := g.embeddingForFile(ctx, filepath.Join(g.dir, name), label)
		if err != nil {
			log.Printf("[WARN] failed to load face from %s: %v", name, err)
		} else {
			entries = append(entries, Entry{Name: label, Embedding: emb})
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	g.mu.Lock()
	g.entries = entries
	if g.index != nil {
		g.index.build(entries)
	}
	g.mu.Unlock()

	log.Printf("[INFO] loaded %d known face(s)", len(entries))
	return len(entries), nil
}

// embeddingForFile returns the embedding for a labeled image, consulting the
// cache first when one is configured.
func (g *Gallery) embeddingForFile(ctx context.Context, path, label string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	if g.cache != nil {
		if emb, ok, err := g.cache.Get(ctx, label, sha); err != nil {
			log.Printf("[WARN] embedding cache lookup for %s: %v", label, err)
		} else if ok {
			return emb, nil
		}
	}

	resp, err := g.detector.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detecting face: %w", err)
	}
	if resp.FacesCount == 0 || len(resp.Faces) == 0 {
		return nil, ErrNoFace
	}

	emb := resp.Faces[0].Embedding
	if g.cache != nil {
		if err := g.cache.Put(ctx, label, sha, emb); err != nil {
			log.Printf("[WARN] embedding cache store for %s: %v", label, err)
		}
	}
	return emb, nil
}

// Register enrolls a new identity from an uploaded image. The image must
// contain exactly one detectable face; otherwise ErrNoFace or
// ErrMultipleFaces is returned and the gallery is unchanged. On success the
// image is persisted under the identity's canonical name and the embedding is
// added to the live gallery without a full reload.
func (g *Gallery) Register(ctx context.Context, imageData []byte, name string) error {
	if name == "" {
		return errors.New("identity name is required")
	}

	resp, err := g.detector.DetectFaces(ctx, imageData)
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}
	if resp.FacesCount == 0 || len(resp.Faces) == 0 {
		return ErrNoFace
	}
	if resp.FacesCount > 1 {
		return ErrMultipleFaces
	}

	canonical, err := encodeCanonicalJPEG(imageData)
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("creating known faces directory: %w", err)
	}
	path := filepath.Join(g.dir, name+".jpg")
	if err := os.WriteFile(path, canonical, 0o644); err != nil {
		return fmt.Errorf("saving face image: %w", err)
	}

	emb := resp.Faces[0].Embedding

	if g.cache != nil {
		sum := sha256.Sum256(canonical)
		if err := g.cache.Put(ctx, name, hex.EncodeToString(sum[:]), emb); err != nil {
			log.Printf("[WARN] embedding cache store for %s: %v", name, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// Re-registering an existing identity replaces its embedding.
	replaced := false
	for i := range g.entries {
		if g.entries[i].Name == name {
			g.entries[i].Embedding = emb
			replaced = true
			break
		}
	}
	if !replaced {
		g.entries = append(g.entries, Entry{Name: name, Embedding: emb})
	}
	if g.index != nil {
		g.index.build(g.entries)
	}
	return nil
}

// Match returns the label of the first identity whose cosine distance to the
// query embedding is within tolerance, or Unknown. With the HNSW index
// enabled the nearest identity within tolerance is returned instead.
func (g *Gallery) Match(embedding []float32) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.entries) == 0 {
		return Unknown
	}

	if g.index != nil {
		if name, ok := g.index.nearest(embedding, g.tolerance); ok {
			return name
		}
		return Unknown
	}

	for _, e := range g.entries {
		if CosineDistance(embedding, e.Embedding) <= g.tolerance {
			return e.Name
		}
	}
	return Unknown
}

// Remove drops an identity from the gallery and deletes its stored image.
// Removing an unknown identity is a no-op.
func (g *Gallery) Remove(ctx context.Context, name string) error {
	g.mu.Lock()
	for i := range g.entries {
		if g.entries[i].Name == name {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			break
		}
	}
	if g.index != nil {
		g.index.build(g.entries)
	}
	g.mu.Unlock()

	if g.cache != nil {
		if err := g.cache.DeleteByName(ctx, name); err != nil {
			log.Printf("[WARN] embedding cache delete for %s: %v", name, err)
		}
	}

	path := filepath.Join(g.dir, name+".jpg")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing face image: %w", err)
	}
	return nil
}

// Names returns the known identity labels in insertion order.
func (g *Gallery) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, len(g.entries))
	for i, e := range g.entries {
		names[i] = e.Name
	}
	return names
}

// Count returns the number of known identities.
func (g *Gallery) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// encodeCanonicalJPEG re-encodes an uploaded image as JPEG so that every
// stored identity image shares one format regardless of the upload format.
func encodeCanonicalJPEG(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
