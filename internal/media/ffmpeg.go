package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// Preset is one compression level for kill videos.
type Preset struct {
	CRF          string
	Scale        string
	AudioBitrate string
}

const DefaultQuality = "high"

var Presets = map[string]Preset{
	"low":     {CRF: "23", Scale: "1280:-2", AudioBitrate: "128k"}, // 720p
	"medium":  {CRF: "28", Scale: "854:-2", AudioBitrate: "96k"},   // 480p
	"high":    {CRF: "30", Scale: "640:-2", AudioBitrate: "64k"},   // 360p
	"extreme": {CRF: "35", Scale: "426:-2", AudioBitrate: "32k"},   // 240p
}

// PresetFor falls back to DefaultQuality for unknown names.
func PresetFor(quality string) (string, Preset) {
	if p, ok := Presets[quality]; ok {
		return quality, p
	}
	return DefaultQuality, Presets[DefaultQuality]
}

// Args builds the ffmpeg command line that re-encodes input to web friendly H.264/AAC mp4.
func Args(input, output string, p Preset) []string {
	return []string{
		"-i", input,
		"-c:v", "libx264",
		"-profile:v", "main",
		"-preset", "medium",
		"-crf", p.CRF,
		"-vf", "scale=" + p.Scale,
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
		"-y",
		output,
	}
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Transcoder struct {
	FFmpeg string
	run    Runner
}

func NewTranscoder(ffmpeg string) *Transcoder {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Transcoder{FFmpeg: ffmpeg, run: execRunner}
}

// Process re-encodes the file at path in place. On failure the original file is left untouched.
func (t *Transcoder) Process(ctx context.Context, path, quality string) error {
	level, preset := PresetFor(quality)
	temp := path + "_processed_temp.mp4"

	before, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	out, err := t.run(ctx, t.FFmpeg, Args(path, temp, preset)...)
	if err != nil {
		os.Remove(temp)
		return fmt.Errorf("ffmpeg %s: %w: %s", level, err, tail(out))
	}

	after, err := os.Stat(temp)
	if err != nil {
		return errors.New("ffmpeg produced no output")
	}
	if err := os.Rename(temp, path); err != nil {
		os.Remove(temp)
		return fmt.Errorf("replace original: %w", err)
	}

	log.WithFields(log.Fields{
		"file":    path,
		"quality": level,
		"in_mb":   fmt.Sprintf("%.2f", mb(before.Size())),
		"out_mb":  fmt.Sprintf("%.2f", mb(after.Size())),
	}).Info("processed video")
	return nil
}

func mb(n int64) float64 { return float64(n) / (1024 * 1024) }

func tail(out []byte) string {
	const keep = 512
	if len(out) > keep {
		out = out[len(out)-keep:]
	}
	return string(out)
}
