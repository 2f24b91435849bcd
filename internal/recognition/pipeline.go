// Package recognition runs the per-frame pipeline: downscale the frame for
// fast detection, call the face service, match embeddings against the known
// gallery, and annotate the frame with named bounding boxes.
package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"

	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/vision"
	"golang.org/x/image/draw"
)

// Detector detects faces and computes their embeddings.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*vision.DetectResponse, error)
}

// Matcher resolves an embedding to an identity name.
type Matcher interface {
	Match(embedding []float32) string
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	// Annotated is the frame re-encoded as JPEG with labeled boxes drawn
	// around every detected face.
	Annotated []byte
	// Labels holds one identity per detected face, in detection order.
	// Unmatched faces carry gallery.Unknown.
	Labels []string
	// Faces are the raw detections with coordinates mapped back to the
	// original frame size.
	Faces []vision.Face
}

// Pipeline processes camera frames. Detection runs on a downscaled copy of
// the frame to keep latency low; coordinates are mapped back to full
// resolution before annotation.
type Pipeline struct {
	detector Detector
	matcher  Matcher
	scale    float64
}

// NewPipeline creates a frame pipeline. scale is the detection downscale
// factor in (0, 1]; values outside that range fall back to full resolution.
func NewPipeline(detector Detector, matcher Matcher, scale float64) *Pipeline {
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	return &Pipeline{
		detector: detector,
		matcher:  matcher,
		scale:    scale,
	}
}

// ProcessFrame runs detection and matching on a single frame. A frame that
// cannot be decoded is an error; a failing detector is not, the frame is
// passed through unannotated so a camera loop keeps running.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame []byte) (*FrameResult, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	detectInput := frame
	if p.scale < 1 {
		detectInput, err = encodeScaled(img, p.scale)
		if err != nil {
			return nil, fmt.Errorf("failed to downscale frame: %w", err)
		}
	}

	resp, err := p.detector.DetectFaces(ctx, detectInput)
	if err != nil {
		log.Printf("face detection failed, passing frame through: %v", err)
		return &FrameResult{Annotated: frame}, nil
	}

	faces := resp.Faces
	if p.scale < 1 {
		faces = rescaleFaces(faces, 1/p.scale)
	}

	labels := make([]string, len(faces))
	for i, face := range faces {
		labels[i] = gallery.Unknown
		if len(face.Embedding) > 0 {
			labels[i] = p.matcher.Match(face.Embedding)
		}
	}

	annotated, err := annotate(img, faces, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate frame: %w", err)
	}

	return &FrameResult{
		Annotated: annotated,
		Labels:    labels,
		Faces:     faces,
	}, nil
}

// encodeScaled resizes the image by the given factor and encodes it as JPEG
// for the detector.
func encodeScaled(img image.Image, scale float64) ([]byte, error) {
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rescaleFaces maps detection coordinates back to the original frame size.
func rescaleFaces(faces []vision.Face, factor float64) []vision.Face {
	scaled := make([]vision.Face, len(faces))
	for i, face := range faces {
		scaled[i] = face

		bbox := make([]float64, len(face.BBox))
		for j, v := range face.BBox {
			bbox[j] = v * factor
		}
		scaled[i].BBox = bbox

		landmarks := make([][]float64, len(face.Landmarks))
		for j, pt := range face.Landmarks {
			p := make([]float64, len(pt))
			for k, v := range pt {
				p[k] = v * factor
			}
			landmarks[j] = p
		}
		scaled[i].Landmarks = landmarks
	}
	return scaled
}
