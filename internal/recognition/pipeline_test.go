package recognition

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"math"
	"testing"

	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/vision"
)

type fakeDetector struct {
	respond func(imageData []byte) (*vision.DetectResponse, error)
	lastReq []byte
}

func (f *fakeDetector) DetectFaces(_ context.Context, imageData []byte) (*vision.DetectResponse, error) {
	f.lastReq = imageData
	return f.respond(imageData)
}

type fakeMatcher struct {
	name string
}

func (f *fakeMatcher) Match(_ []float32) string {
	return f.name
}

// testFrame encodes a solid JPEG frame of the given size.
func testFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestProcessFrameRejectsGarbage(t *testing.T) {
	p := NewPipeline(&fakeDetector{}, &fakeMatcher{}, 1)

	if _, err := p.ProcessFrame(context.Background(), []byte("not an image")); err == nil {
		t.Error("expected error for undecodable frame")
	}
}

func TestProcessFrameDetectorFailurePassesThrough(t *testing.T) {
	detector := &fakeDetector{
		respond: func([]byte) (*vision.DetectResponse, error) {
			return nil, errors.New("service down")
		},
	}
	p := NewPipeline(detector, &fakeMatcher{}, 1)
	frame := testFrame(t, 64, 48)

	result, err := p.ProcessFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("expected no error on detector failure, got %v", err)
	}
	if !bytes.Equal(result.Annotated, frame) {
		t.Error("expected original frame passed through")
	}
	if len(result.Labels) != 0 {
		t.Errorf("expected no labels, got %v", result.Labels)
	}
}

func TestProcessFrameDownscalesForDetection(t *testing.T) {
	detector := &fakeDetector{
		respond: func([]byte) (*vision.DetectResponse, error) {
			return &vision.DetectResponse{}, nil
		},
	}
	p := NewPipeline(detector, &fakeMatcher{}, 0.25)
	frame := testFrame(t, 400, 200)

	if _, err := p.ProcessFrame(context.Background(), frame); err != nil {
		t.Fatalf("process frame: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(detector.lastReq))
	if err != nil {
		t.Fatalf("detector did not receive a decodable image: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected detector input 100x50, got %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestProcessFrameMapsCoordinatesBack(t *testing.T) {
	detector := &fakeDetector{
		respond: func([]byte) (*vision.DetectResponse, error) {
			return &vision.DetectResponse{
				FacesCount: 1,
				Faces: []vision.Face{{
					Embedding: []float32{0.1, 0.2},
					BBox:      []float64{10, 5, 20, 15},
					Landmarks: [][]float64{{12, 7}},
				}},
			}, nil
		},
	}
	p := NewPipeline(detector, &fakeMatcher{name: "alice"}, 0.25)
	frame := testFrame(t, 400, 200)

	result, err := p.ProcessFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("process frame: %v", err)
	}

	if len(result.Faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(result.Faces))
	}
	want := []float64{40, 20, 80, 60}
	for i, v := range want {
		if math.Abs(result.Faces[0].BBox[i]-v) > 1e-9 {
			t.Errorf("bbox[%d]: expected %f, got %f", i, v, result.Faces[0].BBox[i])
		}
	}
	if math.Abs(result.Faces[0].Landmarks[0][0]-48) > 1e-9 {
		t.Errorf("expected landmark x 48, got %f", result.Faces[0].Landmarks[0][0])
	}

	if len(result.Labels) != 1 || result.Labels[0] != "alice" {
		t.Errorf("expected labels [alice], got %v", result.Labels)
	}

	// Annotated frame keeps the original resolution.
	img, _, err := image.Decode(bytes.NewReader(result.Annotated))
	if err != nil {
		t.Fatalf("annotated frame not decodable: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 200 {
		t.Errorf("expected annotated frame 400x200, got %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestProcessFrameUnknownWithoutEmbedding(t *testing.T) {
	detector := &fakeDetector{
		respond: func([]byte) (*vision.DetectResponse, error) {
			return &vision.DetectResponse{
				FacesCount: 1,
				Faces:      []vision.Face{{BBox: []float64{1, 1, 5, 5}}},
			}, nil
		},
	}
	p := NewPipeline(detector, &fakeMatcher{name: "alice"}, 1)

	result, err := p.ProcessFrame(context.Background(), testFrame(t, 32, 32))
	if err != nil {
		t.Fatalf("process frame: %v", err)
	}
	if len(result.Labels) != 1 || result.Labels[0] != gallery.Unknown {
		t.Errorf("expected Unknown label for face without embedding, got %v", result.Labels)
	}
}
