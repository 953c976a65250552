package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/classlens/classlens/internal/logger"
	"golang.org/x/image/draw"
)

// ErrInsufficientFrames is returned when fewer usable frames remain after
// quality filtering than the configured minimum. Fatal to the run, not
// retryable.
var ErrInsufficientFrames = errors.New("insufficient usable frames")

// Frame is one sampled still image from a video.
type Frame struct {
	Timestamp float64 // seconds into the video
	Width     int
	Height    int
	Data      []byte // JPEG-encoded payload
}

// Config holds frame sampling parameters.
type Config struct {
	FFmpegPath  string
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
	ShortCount  int // videos under 5 minutes
	MediumCount int // videos under 20 minutes
	LongCount   int // everything longer
	MinUsable   int
}

// Sampler extracts a bounded, evenly distributed, quality-filtered set of
// still images from a source video using ffmpeg.
type Sampler struct {
	cfg        Config
	ffmpegPath string
}

// NewSampler creates a sampler, locating ffmpeg on PATH when no explicit
// path is configured.
// Parameters:
//   - cfg: sampling configuration.
// Returns:
//   - *Sampler: initialized sampler.
//   - error: non-nil if ffmpeg cannot be found.
func NewSampler(cfg Config) (*Sampler, error) {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 640
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 480
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 70
	}
	if cfg.ShortCount <= 0 {
		cfg.ShortCount = 8
	}
	if cfg.MediumCount <= 0 {
		cfg.MediumCount = 15
	}
	if cfg.LongCount <= 0 {
		cfg.LongCount = 20
	}
	if cfg.MinUsable <= 0 {
		cfg.MinUsable = 3
	}

	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		ffmpegPath = found
	}

	return &Sampler{cfg: cfg, ffmpegPath: ffmpegPath}, nil
}

// FrameCount returns the bucketed frame count for a video duration.
func (s *Sampler) FrameCount(durationSeconds float64) int {
	switch {
	case durationSeconds < 5*60:
		return s.cfg.ShortCount
	case durationSeconds < 20*60:
		return s.cfg.MediumCount
	default:
		return s.cfg.LongCount
	}
}

// Timestamps returns n sample points evenly distributed across the middle
// 90% of the video. The first and last 5% are skipped to avoid intro and
// outro bias.
func Timestamps(durationSeconds float64, n int) []float64 {
	if n <= 0 || durationSeconds <= 0 {
		return nil
	}
	start := 0.05 * durationSeconds
	end := 0.95 * durationSeconds
	if n == 1 {
		return []float64{(start + end) / 2}
	}
	step := (end - start) / float64(n+1)
	ts := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		ts = append(ts, start+step*float64(i))
	}
	return ts
}

// Sample extracts, downscales, and quality-filters still frames from the
// video at videoPath. All temporary artifacts are scoped to this run and
// removed on every exit path.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - videoPath: local path of the source video.
// Returns:
//   - []Frame: usable frames in timestamp order.
//   - float64: probed video duration in seconds.
//   - error: ErrInsufficientFrames when filtering leaves fewer than the
//     minimum, or another error when probing/extraction fails outright.
func (s *Sampler) Sample(ctx context.Context, videoPath string) ([]Frame, float64, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, 0, fmt.Errorf("video file not accessible: %w", err)
	}

	duration, err := s.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get video duration: %w", err)
	}
	if duration <= 0 {
		return nil, 0, fmt.Errorf("invalid video duration: %f", duration)
	}

	tempDir, err := os.MkdirTemp("", "classlens-frames-")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	count := s.FrameCount(duration)
	timestamps := Timestamps(duration, count)

	frames := make([]Frame, 0, count)
	dropped := 0
	for _, ts := range timestamps {
		if ctx.Err() != nil {
			return nil, duration, ctx.Err()
		}

		frame, err := s.extractOne(ctx, videoPath, tempDir, ts)
		if err != nil {
			logger.FromContext(ctx).WithError(err).
				WithField("timestamp", ts).Warn("Failed to extract frame")
			dropped++
			continue
		}
		if !usable(frame.image) {
			dropped++
			continue
		}

		encoded, w, h, err := s.encode(frame.image)
		if err != nil {
			dropped++
			continue
		}
		frames = append(frames, Frame{
			Timestamp: ts,
			Width:     w,
			Height:    h,
			Data:      encoded,
		})
	}

	if len(frames) < s.cfg.MinUsable {
		return nil, duration, fmt.Errorf("%w: %d usable of %d sampled (%d dropped)",
			ErrInsufficientFrames, len(frames), count, dropped)
	}

	return frames, duration, nil
}

type rawFrame struct {
	image image.Image
}

// extractOne runs ffmpeg to grab a single still at the given timestamp.
func (s *Sampler) extractOne(ctx context.Context, videoPath, tempDir string, timestamp float64) (*rawFrame, error) {
	tempFile := filepath.Join(tempDir, fmt.Sprintf("frame_%.2f.jpg", timestamp))
	defer os.Remove(tempFile)

	args := []string{
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		"-y",
		tempFile,
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed at %.2fs: %w: %s", timestamp, err, truncate(stderr.String(), 200))
	}

	f, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return &rawFrame{image: img}, nil
}

// encode downscales to the configured bounds and re-encodes as JPEG.
func (s *Sampler) encode(img image.Image) ([]byte, int, int, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > s.cfg.MaxWidth || h > s.cfg.MaxHeight {
		scale := float64(s.cfg.MaxWidth) / float64(w)
		if hs := float64(s.cfg.MaxHeight) / float64(h); hs < scale {
			scale = hs
		}
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = nw, nh
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// probeDuration reads the video duration, preferring ffprobe and falling
// back to parsing ffmpeg's stderr banner.
func (s *Sampler) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	if ffprobePath, err := exec.LookPath("ffprobe"); err == nil {
		cmd := exec.CommandContext(ctx, ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			durationStr := strings.TrimSpace(stdout.String())
			if duration, err := strconv.ParseFloat(durationStr, 64); err == nil && duration > 0 {
				return duration, nil
			}
		}
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, "-i", videoPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	return parseDurationBanner(stderr.String())
}

// parseDurationBanner extracts "Duration: HH:MM:SS.ss" from ffmpeg output.
func parseDurationBanner(output string) (float64, error) {
	const prefix = "Duration: "
	startIndex := strings.Index(output, prefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(prefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	durationStr := output[startIndex : startIndex+endIndex]
	parts := strings.Split(durationStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", durationStr)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
