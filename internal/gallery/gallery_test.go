package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/facegate/internal/vision"
)

// fakeDetector returns canned responses keyed by image content.
type fakeDetector struct {
	respond func(data []byte) (*vision.DetectResponse, error)
}

func (f *fakeDetector) DetectFaces(_ context.Context, data []byte) (*vision.DetectResponse, error) {
	return f.respond(data)
}

func singleFace(embedding []float32) *vision.DetectResponse {
	return &vision.DetectResponse{
		FacesCount: 1,
		Faces:      []vision.Face{{FaceIndex: 0, Embedding: embedding, BBox: []float64{0, 0, 10, 10}}},
	}
}

// testJPEG produces a small valid JPEG for enrollment tests.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestMatchFirstWithinToleranceInsertionOrder(t *testing.T) {
	embeddings := [][]float32{
		{1, 0, 0},
		{0.99, 0.14, 0}, // also within tolerance of the query
	}
	i := 0
	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		resp := singleFace(embeddings[i])
		i++
		return resp, nil
	}}

	g := New(t.TempDir(), 0.6, det)
	img := testJPEG(t)
	if err := g.Register(context.Background(), img, "alice"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := g.Register(context.Background(), img, "bob"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	// The query is closer to bob, but alice was inserted first and is within
	// tolerance, so the linear scan must return alice.
	got := g.Match([]float32{0.99, 0.14, 0})
	if got != "alice" {
		t.Errorf("expected first match 'alice', got '%s'", got)
	}
}

func TestMatchUnknown(t *testing.T) {
	g := New(t.TempDir(), 0.6, &fakeDetector{})
	if got := g.Match([]float32{1, 0, 0}); got != Unknown {
		t.Errorf("expected Unknown on empty gallery, got '%s'", got)
	}

	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		return singleFace([]float32{1, 0, 0}), nil
	}}
	g = New(t.TempDir(), 0.1, det)
	if err := g.Register(context.Background(), testJPEG(t), "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Orthogonal vector, distance 1.0, outside tolerance 0.1.
	if got := g.Match([]float32{0, 1, 0}); got != Unknown {
		t.Errorf("expected Unknown outside tolerance, got '%s'", got)
	}
}

func TestRegisterRejectsZeroAndMultipleFaces(t *testing.T) {
	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		return &vision.DetectResponse{FacesCount: 0}, nil
	}}
	dir := t.TempDir()
	g := New(dir, 0.6, det)

	err := g.Register(context.Background(), testJPEG(t), "ghost")
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}

	det.respond = func([]byte) (*vision.DetectResponse, error) {
		return &vision.DetectResponse{
			FacesCount: 2,
			Faces: []vision.Face{
				{Embedding: []float32{1, 0}},
				{Embedding: []float32{0, 1}},
			},
		}, nil
	}
	err = g.Register(context.Background(), testJPEG(t), "twins")
	if !errors.Is(err, ErrMultipleFaces) {
		t.Errorf("expected ErrMultipleFaces, got %v", err)
	}

	if g.Count() != 0 {
		t.Errorf("expected gallery unchanged after rejections, got %d entries", g.Count())
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost.jpg")); !os.IsNotExist(err) {
		t.Error("expected no image persisted for rejected enrollment")
	}
}

func TestRegisterPersistsAndMatches(t *testing.T) {
	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		return singleFace([]float32{0.5, 0.5, 0}), nil
	}}
	dir := t.TempDir()
	g := New(dir, 0.6, det)

	if err := g.Register(context.Background(), testJPEG(t), "carol"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if got := g.Match([]float32{0.5, 0.5, 0}); got != "carol" {
		t.Errorf("expected 'carol' immediately matchable, got '%s'", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "carol.jpg")); err != nil {
		t.Errorf("expected canonical image on disk: %v", err)
	}
}

func TestLoadReplacesGallery(t *testing.T) {
	dir := t.TempDir()
	img := testJPEG(t)
	for _, name := range []string{"alice.jpg", "bob.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		return singleFace([]float32{1, 0, 0}), nil
	}}
	g := New(dir, 0.6, det)

	n, err := g.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 identities, got %d", n)
	}

	// Deleting one image and reloading must drop that identity.
	if err := os.Remove(filepath.Join(dir, "bob.jpg")); err != nil {
		t.Fatalf("removing bob.jpg: %v", err)
	}
	n, err = g.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 identity after reload, got %d", n)
	}
	names := g.Names()
	if len(names) != 1 || names[0] != "alice" {
		t.Errorf("expected only 'alice', got %v", names)
	}
}

func TestLoadSkipsFailedImages(t *testing.T) {
	dir := t.TempDir()
	img := testJPEG(t)
	if err := os.WriteFile(filepath.Join(dir, "alice.jpg"), img, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	det := &fakeDetector{respond: func(data []byte) (*vision.DetectResponse, error) {
		if bytes.Equal(data, []byte("not an image")) {
			return nil, errors.New("decode failure")
		}
		return singleFace([]float32{1, 0, 0}), nil
	}}
	g := New(dir, 0.6, det)

	n, err := g.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 identity (broken image skipped), got %d", n)
	}
}

func TestHNSWNearestWithinTolerance(t *testing.T) {
	embeddings := [][]float32{
		{1, 0, 0},
		{0.99, 0.14, 0},
	}
	i := 0
	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		resp := singleFace(embeddings[i])
		i++
		return resp, nil
	}}

	g := New(t.TempDir(), 0.6, det)
	img := testJPEG(t)
	if err := g.Register(context.Background(), img, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(context.Background(), img, "bob"); err != nil {
		t.Fatal(err)
	}

	g.EnableHNSW()

	// With the index enabled the policy is nearest-within-tolerance, so the
	// query closest to bob now resolves to bob.
	if got := g.Match([]float32{0.99, 0.14, 0}); got != "bob" {
		t.Errorf("expected nearest match 'bob', got '%s'", got)
	}

	if got := g.Match([]float32{0, 0, 1}); got != Unknown {
		t.Errorf("expected Unknown outside tolerance, got '%s'", got)
	}
}

func TestRemove(t *testing.T) {
	det := &fakeDetector{respond: func([]byte) (*vision.DetectResponse, error) {
		return singleFace([]float32{1, 0, 0}), nil
	}}
	dir := t.TempDir()
	g := New(dir, 0.6, det)
	if err := g.Register(context.Background(), testJPEG(t), "alice"); err != nil {
		t.Fatal(err)
	}

	if err := g.Remove(context.Background(), "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if g.Count() != 0 {
		t.Errorf("expected empty gallery, got %d entries", g.Count())
	}
	if _, err := os.Stat(filepath.Join(dir, "alice.jpg")); !os.IsNotExist(err) {
		t.Error("expected stored image deleted")
	}

	// Removing an unknown identity is a no-op.
	if err := g.Remove(context.Background(), "nobody"); err != nil {
		t.Errorf("expected no error removing unknown identity, got %v", err)
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("expected distance 1 for orthogonal vectors, got %f", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{1}); d != 2.0 {
		t.Errorf("expected distance 2 for mismatched lengths, got %f", d)
	}
	if d := CosineDistance([]float32{0, 0}, []float32{0, 0}); d != 2.0 {
		t.Errorf("expected distance 2 for zero vectors, got %f", d)
	}
}
