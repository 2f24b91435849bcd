package handlers

import (
	"net/http"

	"github.com/kozaktomas/facegate/internal/attendance"
	"github.com/kozaktomas/facegate/internal/liveness"
	"github.com/kozaktomas/facegate/internal/recognition"
)

// FramesHandler handles frame processing and liveness endpoints. It is the
// HTTP face of the same pipeline the camera loop drives.
type FramesHandler struct {
	pipeline *recognition.Pipeline
	liveness *liveness.Detector
	manager  *attendance.Manager
}

// NewFramesHandler creates a new frames handler.
func NewFramesHandler(pipeline *recognition.Pipeline, gate *liveness.Detector, manager *attendance.Manager) *FramesHandler {
	return &FramesHandler{pipeline: pipeline, liveness: gate, manager: manager}
}

// FrameResponse represents the outcome of processing one uploaded frame.
// Annotated is the boxed-and-labeled JPEG, base64-encoded by encoding/json.
type FrameResponse struct {
	FacesCount int                 `json:"faces_count"`
	Labels     []string            `json:"labels"`
	Annotated  []byte              `json:"annotated"`
	Liveness   liveness.Verdict    `json:"liveness"`
	Attendance []attendance.Result `json:"attendance"`
}

// Process runs one frame through recognition and the liveness gate. When a
// "mode" query parameter is present and the subject is live, the recognized
// names are fed into the attendance state machine.
func (h *FramesHandler) Process(w http.ResponseWriter, r *http.Request) {
	frame, err := readImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.ProcessFrame(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to process frame")
		return
	}

	verdict := h.liveness.Check(result.Faces)

	resp := FrameResponse{
		FacesCount: len(result.Faces),
		Labels:     result.Labels,
		Annotated:  result.Annotated,
		Liveness:   verdict,
		Attendance: []attendance.Result{},
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}

	if modeParam := r.URL.Query().Get("mode"); modeParam != "" && verdict.IsLive {
		mode, err := attendance.ParseMode(modeParam)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp.Attendance = h.manager.ProcessAttendance(result.Labels, mode)
	}

	respondJSON(w, http.StatusOK, resp)
}

// Annotated runs recognition on one frame and returns the annotated JPEG.
func (h *FramesHandler) Annotated(w http.ResponseWriter, r *http.Request) {
	frame, err := readImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.ProcessFrame(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to process frame")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(result.Annotated)
}

// CheckLiveness evaluates one frame against the blink gate without touching
// attendance.
func (h *FramesHandler) CheckLiveness(w http.ResponseWriter, r *http.Request) {
	frame, err := readImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.ProcessFrame(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to process frame")
		return
	}

	respondJSON(w, http.StatusOK, h.liveness.Check(result.Faces))
}

// ResetLiveness clears blink state, e.g. when the subject changes.
func (h *FramesHandler) ResetLiveness(w http.ResponseWriter, r *http.Request) {
	h.liveness.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
