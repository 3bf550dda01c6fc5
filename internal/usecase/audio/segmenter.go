// Package audio splits raw audio streams into file-backed chunks for batch
// verification. Durations are estimated from byte size, never decoded, so
// chunk boundaries are a windowing heuristic rather than precise cuts.
package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"
)

const (
	// bytesPerMinute is the rough size of one minute of typical web
	// audio (WebM/Opus), used to estimate duration without decoding.
	bytesPerMinute = 1024 * 1024

	// defaultMinChunkBytes floors the computed chunk size when the caller
	// does not supply a floor.
	defaultMinChunkBytes = 10 * 1024

	minEstimatedDuration = 10 * time.Second
	maxEstimatedDuration = 600 * time.Second
)

// Chunk is one file-backed segment of a larger audio stream. Start and End
// are size-derived estimates. The backing file is owned by the caller and
// must be removed with Cleanup after use.
type Chunk struct {
	Number   int
	Path     string
	ByteSize int64
	Start    time.Duration
	End      time.Duration
}

// Read loads the chunk bytes from its backing file.
func (c Chunk) Read() ([]byte, error) {
	return os.ReadFile(c.Path)
}

// Segmenter splits audio streams into chunks under a working directory.
type Segmenter struct {
	dir            string
	targetDuration time.Duration
	minChunkBytes  int64
}

// NewSegmenter creates a segmenter writing chunk files below dir. The target
// duration is clamped to [10s, 120s]; minChunkBytes floors the computed
// chunk size (<= 0 selects the default floor).
func NewSegmenter(dir string, targetDuration time.Duration, minChunkBytes int64) *Segmenter {
	if targetDuration < 10*time.Second {
		targetDuration = 10 * time.Second
	}
	if targetDuration > 120*time.Second {
		targetDuration = 120 * time.Second
	}
	if minChunkBytes <= 0 {
		minChunkBytes = defaultMinChunkBytes
	}
	return &Segmenter{dir: dir, targetDuration: targetDuration, minChunkBytes: minChunkBytes}
}

// EstimateDuration guesses the play time of an audio blob from its byte
// size, clamped to [10s, 600s].
func EstimateDuration(byteSize int64) time.Duration {
	minutes := float64(byteSize) / float64(bytesPerMinute)
	estimated := time.Duration(minutes * float64(time.Minute))
	if estimated < minEstimatedDuration {
		return minEstimatedDuration
	}
	if estimated > maxEstimatedDuration {
		return maxEstimatedDuration
	}
	return estimated
}

// Segment reads the full stream and splits it into approximately
// target-duration chunks, each backed by a temp file in a fresh per-call
// directory. The caller owns the chunks and must call Cleanup when done.
func (s *Segmenter) Segment(r io.Reader) ([]Chunk, error) {
	workDir, err := os.MkdirTemp(s.dir, "chunks_")
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(data) == 0 {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("empty audio stream")
	}

	totalSize := int64(len(data))
	estimated := EstimateDuration(totalSize)
	chunkCount := int64(math.Ceil(estimated.Seconds() / s.targetDuration.Seconds()))
	if chunkCount < 1 {
		chunkCount = 1
	}
	chunkSize := totalSize / chunkCount
	if chunkSize < s.minChunkBytes {
		chunkSize = s.minChunkBytes
	}

	var chunks []Chunk
	for offset := int64(0); offset < totalSize; offset += chunkSize {
		end := offset + chunkSize
		if end > totalSize {
			end = totalSize
		}

		number := len(chunks)
		path := filepath.Join(workDir, fmt.Sprintf("chunk_%03d.webm", number))
		if err := os.WriteFile(path, data[offset:end], 0o600); err != nil {
			cleanupFiles(chunks, workDir)
			return nil, fmt.Errorf("failed to write chunk %d: %w", number, err)
		}

		chunks = append(chunks, Chunk{
			Number:   number,
			Path:     path,
			ByteSize: end - offset,
			Start:    time.Duration(number) * s.targetDuration,
			End:      time.Duration(number+1) * s.targetDuration,
		})
	}

	return chunks, nil
}

// Cleanup removes the chunk files and their per-call directory.
func (s *Segmenter) Cleanup(chunks []Chunk) {
	if len(chunks) == 0 {
		return
	}
	cleanupFiles(chunks, filepath.Dir(chunks[0].Path))
}

func cleanupFiles(chunks []Chunk, workDir string) {
	for _, c := range chunks {
		os.Remove(c.Path)
	}
	os.Remove(workDir)
}

// SweepOrphans removes chunk directories older than maxAge. Chunk files leak
// when a request dies between Segment and Cleanup; a periodic sweep keeps
// the leak bounded.
func (s *Segmenter) SweepOrphans(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) < 7 || entry.Name()[:7] != "chunks_" {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
