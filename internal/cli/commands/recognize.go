package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridsight-dev/gridsight/internal/cli/format"
	"github.com/gridsight-dev/gridsight/internal/cli/portal"
	"github.com/gridsight-dev/gridsight/internal/cli/router"
)

const (
	recognitionRoute = "/user/recognition"
	batchRoute       = "/user/batch"
	realtimeRoute    = "/user/realtime"
)

// NewRecognizeCmd creates the recognize command
func NewRecognizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recognize <image>",
		Short: "Recognize objects and defects in one image",
		Long:  "Upload a JPG, PNG or BMP image for recognition. Uses one unit of image quota.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecognize(cmd.Context(), args[0], WithServer(serverFlag(cmd)))
		},
	}
}

type batchOptions struct {
	watch    bool
	interval time.Duration
}

// NewBatchCmd creates the batch command
func NewBatchCmd() *cobra.Command {
	var opts batchOptions
	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Process up to 100 images and videos in the background",
		Long: `Upload images and videos for batch processing. The portal answers with a task id
right away; quota is charged by total upload size in MB when the task completes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args, opts, WithServer(serverFlag(cmd)))
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Follow the task until it finishes")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Polling interval with --watch")
	return cmd
}

type realtimeOptions struct {
	annotate bool
	output   string
}

// NewRealtimeCmd creates the realtime command
func NewRealtimeCmd() *cobra.Command {
	var opts realtimeOptions
	cmd := &cobra.Command{
		Use:   "realtime <frame>",
		Short: "Run realtime detection on one frame",
		Long:  "Requires the realtime permission. Usage is recorded in your history but uses no quota.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRealtime(cmd.Context(), args[0], opts, WithServer(serverFlag(cmd)))
		},
	}
	cmd.Flags().BoolVar(&opts.annotate, "annotate", false, "Ask for an annotated image instead of detections")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Where to write the annotated PNG (default <frame>.annotated.png)")
	return cmd
}

// enter navigates to a portal page and fails unless the guard allows it
func (r *stack) enter(ctx context.Context, route string) error {
	decision, err := r.navigator.Navigate(ctx, route)
	if err != nil {
		return err
	}

	switch decision.Outcome {
	case router.RedirectLogin:
		return fmt.Errorf("%s requires a session. Run 'gridsight login' first", route)
	case router.RedirectHome:
		return fmt.Errorf("%s is not available to %s accounts", route, decision.Role)
	}
	return nil
}

// openUploads opens every path for upload. The returned func closes them all.
func openUploads(paths []string) ([]portal.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]portal.Upload, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		files = append(files, f)

		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			closeAll()
			return nil, nil, fmt.Errorf("%s is a directory", path)
		}
		uploads = append(uploads, portal.Upload{Name: path, Size: info.Size(), Content: f})
	}
	return uploads, closeAll, nil
}

func runRecognize(ctx context.Context, path string, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.enter(ctx, recognitionRoute); err != nil {
		return err
	}

	uploads, closeAll, err := openUploads([]string{path})
	if err != nil {
		return err
	}
	defer closeAll()

	p, err := s.portal.Predict(ctx, uploads[0])
	if err != nil {
		return err
	}

	s.printf("%s: %d objects in %.0fms\n\n", p.Filename, p.Result.DetectedObjects, p.Result.InferenceTimeMS)
	if err := s.printDetections(p.Result.Predictions); err != nil {
		return err
	}
	s.printf("\nImage quota left: %s\n", format.Quota(p.RemainingLimit))
	return nil
}

func runBatch(ctx context.Context, paths []string, opts batchOptions, extra ...Option) error {
	if opts.watch && opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", opts.interval)
	}

	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.enter(ctx, batchRoute); err != nil {
		return err
	}

	uploads, closeAll, err := openUploads(paths)
	if err != nil {
		return err
	}
	defer closeAll()

	var total int64
	for _, up := range uploads {
		total += up.Size
	}
	s.log.Info().Int("files", len(uploads)).Str("size", format.FileSize(uint64(total))).Msg("uploading batch")

	start, err := s.portal.Batch(ctx, uploads)
	if err != nil {
		return err
	}

	s.printf("✓ Task %s started: %d files, %.3f MB of quota required\n", start.TaskID, len(uploads), start.RequiredQuota)
	if start.RemainingQuota >= 0 {
		s.printf("  Batch quota left afterwards: %.3f MB\n", start.RemainingQuota)
	}

	if !opts.watch {
		s.printf("\nFollow it with 'gridsight tasks progress %s --watch'\n", start.TaskID)
		return nil
	}

	p, err := s.portal.WatchProgress(ctx, start.TaskID, opts.interval, s.printProgress)
	if err != nil {
		return err
	}
	return s.printBatchResults(p.ProcessedFiles)
}

func runRealtime(ctx context.Context, path string, opts realtimeOptions, extra ...Option) error {
	s, err := connect(extra)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.enter(ctx, realtimeRoute); err != nil {
		return err
	}
	if err := s.portal.RequireRealtime(ctx); err != nil {
		return err
	}

	uploads, closeAll, err := openUploads([]string{path})
	if err != nil {
		return err
	}
	defer closeAll()

	if opts.annotate {
		rec, err := s.portal.RealtimeAnnotate(ctx, uploads[0])
		if err != nil {
			return err
		}
		img, err := portal.DecodeAnnotatedImage(rec.AnnotatedImage)
		if err != nil {
			return err
		}

		output := opts.output
		if output == "" {
			output = strings.TrimSuffix(path, filepath.Ext(path)) + ".annotated.png"
		}
		if err := os.WriteFile(output, img, 0644); err != nil {
			return fmt.Errorf("failed to write annotated image: %w", err)
		}
		s.printf("✓ Annotated image written to %s (%s)\n", output, format.FileSize(uint64(len(img))))
	} else {
		rec, err := s.portal.RealtimeDetect(ctx, uploads[0])
		if err != nil {
			return err
		}
		s.printf("%d objects in %.0fms\n\n", rec.DetectedObjects, rec.InferenceTimeMS)
		if err := s.printDetections(rec.Predictions); err != nil {
			return err
		}
	}

	if _, err := s.portal.LogRealtime(ctx, portal.RealtimeUsage{Quantity: 1}); err != nil {
		s.log.Warn().Err(err).Msg("failed to record realtime usage")
	}
	return nil
}

func (r *stack) printDetections(detections []portal.Detection) error {
	if len(detections) == 0 {
		r.println("No objects detected.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tASSET\tSTATUS\tCONFIDENCE\tCENTER\tSIZE")
	fmt.Fprintln(w, "─\t─────\t──────\t──────────\t──────\t────")
	for i, d := range detections {
		status := "normal"
		if d.Defective() {
			status = "DEFECT"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f%%\t%.3f,%.3f\t%.3fx%.3f\n",
			i+1, d.AssetCategory, status, d.Confidence*100, d.Center.X, d.Center.Y, d.Width, d.Height)
	}
	return w.Flush()
}

func (r *stack) printBatchResults(results []portal.BatchFileResult) error {
	if len(results) == 0 {
		return nil
	}

	r.println()
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tOBJECTS\tRESULT")
	fmt.Fprintln(w, "────\t────\t───────\t──────")
	for _, res := range results {
		outcome := "ok"
		if !res.Success {
			outcome = "failed: " + res.Error
		}
		fileType := res.FileType
		if fileType == "" {
			fileType = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", res.Filename, fileType, res.DetectedObjects, outcome)
	}
	return w.Flush()
}
