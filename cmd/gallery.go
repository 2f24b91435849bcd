package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the known faces gallery",
}

var galleryLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the gallery and verify every stored face",
	Long: `Load all known face images and compute their embeddings.
Useful for warming up the PostgreSQL embedding cache and for spotting
stored images the face service can no longer detect a face in.`,
	RunE: runGalleryLoad,
}

var galleryRegisterCmd = &cobra.Command{
	Use:   "register <name> <image>",
	Short: "Enroll a face image for a registered employee",
	Long: `Enroll a face image for a registered employee.

The name must match an existing registry entry and the image must contain
exactly one detectable face.

Example:
  facegate gallery register "Jana Novakova" ./jana.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runGalleryRegister,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runGalleryList,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryLoadCmd)
	galleryCmd.AddCommand(galleryRegisterCmd)
	galleryCmd.AddCommand(galleryListCmd)
}

func runGalleryLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	var bar *progressbar.ProgressBar
	count, err := d.gallery.Load(ctx, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Loading known faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("faces"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	})
	if err != nil {
		return fmt.Errorf("failed to load face gallery: %w", err)
	}

	fmt.Printf("\nLoaded %d known face(s)\n", count)
	return nil
}

func runGalleryRegister(cmd *cobra.Command, args []string) error {
	name, imagePath := args[0], args[1]

	ctx := context.Background()
	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	if _, ok := d.registry.GetByName(name); !ok {
		return fmt.Errorf("no employee registered under %q, add them first with: facegate employee add", name)
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	if err := d.gallery.Register(ctx, imageData, name); err != nil {
		switch {
		case errors.Is(err, gallery.ErrNoFace):
			return fmt.Errorf("no face detected in %s, use a clear frontal photo", imagePath)
		case errors.Is(err, gallery.ErrMultipleFaces):
			return fmt.Errorf("multiple faces detected in %s, crop to a single person", imagePath)
		default:
			return err
		}
	}

	fmt.Printf("Enrolled face for %s\n", name)
	return nil
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	count, err := d.gallery.Load(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to load face gallery: %w", err)
	}
	if count == 0 {
		fmt.Println("No faces enrolled.")
		return nil
	}

	for _, name := range d.gallery.Names() {
		fmt.Println(name)
	}
	fmt.Printf("\nTotal: %d face(s)\n", count)
	return nil
}
