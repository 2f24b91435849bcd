package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/facegate/internal/attendance"
	"github.com/kozaktomas/facegate/internal/capture"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a camera stream and record attendance",
	Long: `Watch an MJPEG camera stream and record attendance for recognized faces.

Every frame is matched against the face gallery. Recognized employees pass
through the blink-based liveness gate before any check-in or check-out is
recorded, so a photo held up to the camera never books attendance.

Examples:
  # Record check-ins from the configured camera
  facegate watch --mode check_in

  # Record check-outs from an explicit stream URL
  facegate watch --mode check_out --camera http://cam.local:8081/stream`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("mode", "check_in", "Transition to record: check_in or check_out")
	watchCmd.Flags().String("camera", "", "MJPEG stream URL (defaults to CAMERA_URL)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	mode, err := attendance.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	cameraURL := mustGetString(cmd, "camera")
	if cameraURL == "" {
		cameraURL = d.cfg.Camera.URL
	}
	if cameraURL == "" {
		return errors.New("camera URL is required (--camera or CAMERA_URL)")
	}

	fmt.Println("Loading known faces...")
	count, err := d.gallery.Load(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to load face gallery: %w", err)
	}
	fmt.Printf("Loaded %d known face(s)\n", count)

	source, err := capture.OpenMJPEG(ctx, cameraURL)
	if err != nil {
		return err
	}
	defer source.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping...")
		cancel()
		source.Close()
	}()

	fmt.Printf("Watching %s for %s events\n", cameraURL, mode)
	runner := capture.NewRunner(source, d.pipeline, d.liveness, d.manager, mode)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("camera loop failed: %w", err)
	}
	return nil
}
