// Package transcribe turns meeting audio into text by running the whisperx
// command-line tool as a subprocess.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedFormat is returned for audio files whose extension is not
	// in SupportedFormats.
	ErrUnsupportedFormat = errors.New("transcribe: unsupported audio format")

	// ErrEmptyTranscription is returned when the audio produced no text.
	ErrEmptyTranscription = errors.New("transcribe: transcription produced no text")

	// ErrTranscriptionFailed is returned when whisperx exits unsuccessfully
	// or its output cannot be read.
	ErrTranscriptionFailed = errors.New("transcribe: transcription failed")
)

// SupportedFormats lists the accepted audio extensions.
var SupportedFormats = []string{".mp3", ".wav", ".m4a", ".webm", ".ogg", ".flac"}

// DefaultBatchSize is the whisperx inference batch size.
const DefaultBatchSize = 16

// stderrTail bounds how much whisperx stderr is carried in an error.
const stderrTail = 512

// Transcriber converts an audio file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, path, language string) (string, error)
}

// Config configures a CommandTranscriber.
type Config struct {
	// Binary is the whisperx executable name or path.
	Binary string
	// Model is the whisper model name, e.g. "large-v3".
	Model string
	// Device is "cuda" or "cpu".
	Device string
	// ComputeType is the CTranslate2 compute type. float16 is replaced by
	// float32 on cpu, which does not support it.
	ComputeType string
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// CommandTranscriber implements Transcriber by running whisperx.
type CommandTranscriber struct {
	binary      string
	model       string
	device      string
	computeType string
	batchSize   int
	log         *slog.Logger
}

// NewCommandTranscriber returns a CommandTranscriber. It verifies that the
// whisperx binary is available at construction time.
func NewCommandTranscriber(cfg Config) (*CommandTranscriber, error) {
	binary := cfg.Binary
	if binary == "" {
		binary = "whisperx"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %s not found on PATH, install whisperx or set WHISPERX_BIN: %w", binary, err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	computeType := cfg.ComputeType
	if cfg.Device == "cpu" && (computeType == "" || computeType == "float16") {
		log.Warn("transcribe: float16 is not supported on cpu, using float32")
		computeType = "float32"
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	return &CommandTranscriber{
		binary:      resolved,
		model:       cfg.Model,
		device:      cfg.Device,
		computeType: computeType,
		batchSize:   batch,
		log:         log,
	}, nil
}

// ComputeType returns the effective compute type after the cpu fallback.
func (t *CommandTranscriber) ComputeType() string { return t.computeType }

// SupportedFormat reports whether filename has an accepted audio extension.
func SupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range SupportedFormats {
		if ext == f {
			return true
		}
	}
	return false
}

// whisperOutput is the subset of the whisperx JSON writer's output we read.
type whisperOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

// Transcribe runs whisperx on path and returns the segment texts joined by
// single spaces. language is an ISO code such as "ru"; empty lets whisperx
// detect it.
func (t *CommandTranscriber) Transcribe(ctx context.Context, path, language string) (string, error) {
	if !SupportedFormat(path) {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat,
			filepath.Ext(path), strings.Join(SupportedFormats, ", "))
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("transcribe: audio file: %w", err)
	}

	outDir, err := os.MkdirTemp("", "meetmind-whisper-*")
	if err != nil {
		return "", fmt.Errorf("transcribe: creating output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		path,
		"--output_dir", outDir,
		"--output_format", "json",
		"--batch_size", strconv.Itoa(t.batchSize),
	}
	if t.model != "" {
		args = append(args, "--model", t.model)
	}
	if t.device != "" {
		args = append(args, "--device", t.device)
	}
	if t.computeType != "" {
		args = append(args, "--compute_type", t.computeType)
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	t.log.Info("transcribe: starting",
		slog.String("file", filepath.Base(path)),
		slog.String("model", t.model),
		slog.String("language", language),
	)
	start := time.Now()

	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("transcribe: %w", ctxErr)
		}
		return "", fmt.Errorf("%w: %s: %w: %s", ErrTranscriptionFailed, filepath.Base(t.binary), err, tail(stderr.String()))
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".json"
	raw, err := os.ReadFile(filepath.Join(outDir, name))
	if err != nil {
		return "", fmt.Errorf("%w: reading output: %w", ErrTranscriptionFailed, err)
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decoding output: %w", ErrTranscriptionFailed, err)
	}

	parts := make([]string, 0, len(out.Segments))
	for _, s := range out.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return "", ErrEmptyTranscription
	}

	t.log.Info("transcribe: complete",
		slog.String("file", filepath.Base(path)),
		slog.String("detected_language", out.Language),
		slog.Int("chars", len([]rune(text))),
		slog.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// tail returns the last stderrTail bytes of s, trimmed.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
