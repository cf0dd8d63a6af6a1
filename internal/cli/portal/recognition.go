package portal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gridsight-dev/gridsight/internal/cli/client"
)

// Batch limits enforced by the portal
const (
	MaxBatchFiles = 100
	MaxBatchBytes = 100 * 1024 * 1024
)

var (
	imageExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "bmp": true}
	videoExtensions = map[string]bool{"mp4": true, "avi": true, "mov": true, "mkv": true, "wmv": true}
)

var (
	ErrUnsupportedFile = errors.New("unsupported file format")
	ErrRealtimeDenied  = errors.New("account has no realtime detection permission")
	ErrAccountBanned   = errors.New("account is banned")
	ErrTooManyFiles    = fmt.Errorf("at most %d files per batch", MaxBatchFiles)
	ErrBatchTooLarge   = errors.New("batch exceeds 100MB")
	ErrNothingToUpload = errors.New("no files to upload")
)

// Upload is one file sent to the recognition endpoints. Size is used for the batch
// size check and may be zero when unknown.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsImage reports whether name has an image extension the portal accepts
func IsImage(name string) bool {
	return imageExtensions[extension(name)]
}

// IsVideo reports whether name has a video extension the portal accepts in batches
func IsVideo(name string) bool {
	return videoExtensions[extension(name)]
}

func requireImage(up Upload) error {
	if !IsImage(up.Name) {
		return fmt.Errorf("%w: %s (use JPG, PNG or BMP)", ErrUnsupportedFile, up.Name)
	}
	return nil
}

func singleFile(up Upload) *client.Form {
	return &client.Form{Files: []client.FormFile{{Field: "file", Name: filepath.Base(up.Name), Content: up.Content}}}
}

// Predict recognizes one image and uses one unit of image quota
func (s *Service) Predict(ctx context.Context, up Upload) (*Prediction, error) {
	if err := requireImage(up); err != nil {
		return nil, err
	}

	env, err := s.api.Request(ctx, "POST", "/api/predict", singleFile(up), nil)
	if err != nil {
		return nil, err
	}

	var p Prediction
	if err := env.DecodeBody(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Batch uploads images and videos for background processing and returns the task to follow.
// Quota is charged by total size in MB once the task completes.
func (s *Service) Batch(ctx context.Context, uploads []Upload) (*BatchStart, error) {
	if len(uploads) == 0 {
		return nil, ErrNothingToUpload
	}
	if len(uploads) > MaxBatchFiles {
		return nil, fmt.Errorf("%w, got %d", ErrTooManyFiles, len(uploads))
	}

	var total int64
	form := &client.Form{}
	for _, up := range uploads {
		if !IsImage(up.Name) && !IsVideo(up.Name) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, up.Name)
		}
		total += up.Size
		form.Files = append(form.Files, client.FormFile{Field: "files", Name: filepath.Base(up.Name), Content: up.Content})
	}
	if total > MaxBatchBytes {
		return nil, ErrBatchTooLarge
	}

	env, err := s.api.Request(ctx, "POST", "/api/batch", form, nil)
	if err != nil {
		return nil, err
	}

	var start BatchStart
	if err := env.DecodeBody(&start); err != nil {
		return nil, err
	}
	if start.TaskID == "" {
		return nil, fmt.Errorf("batch response did not include a task id")
	}
	return &start, nil
}

// RequireRealtime fails unless the account may use realtime detection
func (s *Service) RequireRealtime(ctx context.Context) error {
	perms, err := s.CheckPermissions(ctx)
	if err != nil {
		return err
	}
	if perms.IsBanned == 1 {
		return ErrAccountBanned
	}
	if perms.RealtimePermission != 1 {
		return ErrRealtimeDenied
	}
	return nil
}

// RealtimeDetect runs the fast realtime model on one frame. It does not use quota.
func (s *Service) RealtimeDetect(ctx context.Context, up Upload) (*Recognition, error) {
	if err := requireImage(up); err != nil {
		return nil, err
	}

	env, err := s.api.Request(ctx, "POST", "/api/realtime/detect", singleFile(up), nil)
	if err != nil {
		return nil, err
	}

	// predictions arrive keyed by their index
	var raw struct {
		Predictions     map[string]Detection `json:"predictions"`
		DetectedObjects int                  `json:"detected_objects"`
		InferenceTimeMS float64              `json:"inference_time_ms"`
	}
	if err := env.DecodeData(&raw); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw.Predictions))
	for key := range raw.Predictions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	rec := &Recognition{DetectedObjects: raw.DetectedObjects, InferenceTimeMS: raw.InferenceTimeMS}
	for _, key := range keys {
		rec.Predictions = append(rec.Predictions, raw.Predictions[key])
	}
	return rec, nil
}

// RealtimeAnnotate runs the full model on one frame and returns the annotated image
func (s *Service) RealtimeAnnotate(ctx context.Context, up Upload) (*Recognition, error) {
	if err := requireImage(up); err != nil {
		return nil, err
	}

	env, err := s.api.Request(ctx, "POST", "/api/realtime", singleFile(up), nil)
	if err != nil {
		return nil, err
	}

	var rec Recognition
	if err := env.DecodeData(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LogRealtime records realtime usage in the account's operation log
func (s *Service) LogRealtime(ctx context.Context, usage RealtimeUsage) (string, error) {
	if err := s.check(usage); err != nil {
		return "", err
	}
	return s.send(ctx, "POST", "/api/realtime/log", usage)
}

// DecodeAnnotatedImage extracts the PNG bytes from an annotated image data URL
func DecodeAnnotatedImage(dataURL string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, fmt.Errorf("annotated image is not a PNG data URL")
	}
	out, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode annotated image: %w", err)
	}
	return out, nil
}
