// Package capture pulls frames from a camera and drives them through the
// recognition, liveness, and attendance stages.
package capture

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
)

// Source yields camera frames as encoded images.
type Source interface {
	// NextFrame blocks until the next frame is available.
	NextFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// MJPEGSource reads frames from an MJPEG-over-HTTP stream, the
// multipart/x-mixed-replace format served by IP cameras and webcam relays.
type MJPEGSource struct {
	body   io.ReadCloser
	reader *multipart.Reader
}

// OpenMJPEG connects to the camera stream.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to camera: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to parse stream content type: %w", err)
	}
	if mediaType != "multipart/x-mixed-replace" {
		resp.Body.Close()
		return nil, fmt.Errorf("not an MJPEG stream: %s", mediaType)
	}
	boundary, ok := params["boundary"]
	if !ok {
		resp.Body.Close()
		return nil, fmt.Errorf("stream content type carries no boundary")
	}

	return &MJPEGSource{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, boundary),
	}, nil
}

// NextFrame returns the next frame from the stream. io.EOF marks the end of
// the stream.
func (s *MJPEGSource) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	part, err := s.reader.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()

	frame, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return frame, nil
}

// Close terminates the stream connection.
func (s *MJPEGSource) Close() error {
	return s.body.Close()
}
