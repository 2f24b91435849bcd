package capture

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/kozaktomas/facegate/internal/attendance"
	"github.com/kozaktomas/facegate/internal/liveness"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/vision"
)

// FrameProcessor runs detection and matching on one frame.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frame []byte) (*recognition.FrameResult, error)
}

// LivenessGate decides whether the current subject is live.
type LivenessGate interface {
	Check(faces []vision.Face) liveness.Verdict
	Reset()
}

// AttendanceSink records transitions for recognized names.
type AttendanceSink interface {
	ProcessAttendance(names []string, mode attendance.Mode) []attendance.Result
}

// Runner is the camera loop: frames go through recognition, the liveness
// gate, and finally the attendance state machine. Frames from subjects that
// have not blinked yet never reach attendance.
type Runner struct {
	source   Source
	pipeline FrameProcessor
	liveness LivenessGate
	sink     AttendanceSink
	mode     attendance.Mode
}

// NewRunner creates a camera loop for the given transition mode.
func NewRunner(source Source, pipeline FrameProcessor, gate LivenessGate, sink AttendanceSink, mode attendance.Mode) *Runner {
	return &Runner{
		source:   source,
		pipeline: pipeline,
		liveness: gate,
		sink:     sink,
		mode:     mode,
	}
}

// Run processes frames until the stream ends or the context is canceled.
// Per-frame pipeline failures are logged and skipped so one bad frame does
// not kill the loop.
func (r *Runner) Run(ctx context.Context) error {
	for {
		frame, err := r.source.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		result, err := r.pipeline.ProcessFrame(ctx, frame)
		if err != nil {
			log.Printf("skipping frame: %v", err)
			continue
		}

		verdict := r.liveness.Check(result.Faces)
		if !verdict.IsLive {
			continue
		}

		for _, res := range r.sink.ProcessAttendance(result.Labels, r.mode) {
			log.Printf("attendance [%s]: %s", res.Status, res.Message)
			if res.Status == attendance.StatusSuccess {
				// The event is done; the next subject has to blink again.
				r.liveness.Reset()
			}
		}
	}
}
