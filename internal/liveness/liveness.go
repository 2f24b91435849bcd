// Package liveness confirms that a detected face belongs to a live subject
// by observing natural eye blinking across consecutive frames. It is a
// stateful gate over a frame stream, not a per-frame classifier: a static
// photo never blinks, so it never becomes live.
package liveness

import (
	"math"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/vision"
)

// Landmark index ranges for the eyes in the 68-point layout.
const (
	rightEyeStart = 36
	rightEyeEnd   = 42
	leftEyeStart  = 42
	leftEyeEnd    = 48

	landmarkCount = 68
)

// Verdict is the result of a liveness check for one frame.
type Verdict struct {
	IsLive    bool    `json:"is_live"`
	FaceFound bool    `json:"face_found"`
	Message   string  `json:"message"`
	EAR       float64 `json:"ear"`
	Blinks    int     `json:"blinks"`
}

// Detector tracks blink state for one detection stream. Reset must be called
// when the subject changes so a new face cannot inherit blink credit.
type Detector struct {
	earThreshold float64
	consecFrames int
	blinkWindow  time.Duration

	mu          sync.Mutex
	streak      int // consecutive frames with EAR below threshold
	totalBlinks int
	lastBlink   time.Time
	now         func() time.Time
}

// New creates a liveness detector. Typical parameters: threshold 0.3, three
// consecutive frames, a three second blink window.
func New(earThreshold float64, consecFrames int, blinkWindow time.Duration) *Detector {
	return &Detector{
		earThreshold: earThreshold,
		consecFrames: consecFrames,
		blinkWindow:  blinkWindow,
		now:          time.Now,
	}
}

// EyeAspectRatio computes the EAR for one eye given its six landmarks in
// dlib order: p1/p4 are the horizontal corners, p2/p6 and p3/p5 the vertical
// pairs. The ratio collapses toward zero when the eyelid closes.
func EyeAspectRatio(eye [][]float64) float64 {
	if len(eye) != 6 {
		return 0
	}
	a := euclidean(eye[1], eye[5])
	b := euclidean(eye[2], eye[4])
	c := euclidean(eye[0], eye[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2.0 * c)
}

func euclidean(p, q []float64) float64 {
	if len(p) < 2 || len(q) < 2 {
		return 0
	}
	dx := p[0] - q[0]
	dy := p[1] - q[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// Check evaluates one frame's detections. No face yields a distinct verdict
// from "face present but not yet live". When multiple faces are present only
// the first is considered; the gate assumes one subject per stream.
func (d *Detector) Check(faces []vision.Face) Verdict {
	if len(faces) == 0 {
		return Verdict{Message: "No face detected"}
	}

	face := faces[0]
	if len(face.Landmarks) < landmarkCount {
		return Verdict{FaceFound: true, Message: "Face landmarks unavailable"}
	}

	ear := averageEAR(face.Landmarks)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if ear < d.earThreshold {
		d.streak++
	} else {
		if d.streak >= d.consecFrames {
			d.totalBlinks++
			d.lastBlink = now
		}
		d.streak = 0
	}

	v := Verdict{FaceFound: true, EAR: ear, Blinks: d.totalBlinks}
	if d.totalBlinks > 0 && now.Sub(d.lastBlink) < d.blinkWindow {
		v.IsLive = true
		v.Message = "Live face detected"
	} else {
		v.Message = "Please blink naturally"
	}
	return v
}

// Reset clears all blink state. Must be invoked when switching subjects.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streak = 0
	d.totalBlinks = 0
	d.lastBlink = time.Time{}
}

// averageEAR averages the eye aspect ratio over both eyes.
func averageEAR(landmarks [][]float64) float64 {
	right := EyeAspectRatio(landmarks[rightEyeStart:rightEyeEnd])
	left := EyeAspectRatio(landmarks[leftEyeStart:leftEyeEnd])
	return (left + right) / 2.0
}
