// Package voiceprint derives deterministic voice fingerprints and matches
// samples against enrolled profiles. This is a lightweight heuristic over
// sample bytes, not acoustic analysis: identical samples always match with
// confidence 1.0 and distinct samples usually diverge, which is enough for
// per-session speaker attribution.
//
// All functions are pure; profiles live in the session record and are passed
// in by the caller.
package voiceprint

import (
	"math"
	"time"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
)

// FeatureCount is the fixed size of every fingerprint vector.
const FeatureCount = 7

// ConfidenceThreshold is the minimum average similarity for a positive
// identification. Best matches below it are reported as unknown_speaker.
const ConfidenceThreshold = 0.65

// Match is the result of an identification attempt.
type Match struct {
	SpeakerID  string
	Confidence float64

	// AllScores holds the similarity per enrolled speaker, for
	// diagnostics.
	AllScores map[string]float64
}

// ExtractFeatures derives the fingerprint vector for a sample. The first six
// features fold the sample length through fixed modular ranges shaped like
// rough pitch/formant/energy bands; the last folds a byte checksum so
// equal-length samples with different content still separate.
func ExtractFeatures(sample []byte) []float64 {
	size := len(sample)

	var checksum int
	for _, b := range sample {
		checksum += int(b)
	}

	return []float64{
		float64(size%100 + 120),    // pitch mean
		float64(size%50 + 10),      // pitch variance
		float64(size%200 + 300),    // formant F1
		float64(size%400 + 800),    // formant F2
		float64(size%1000 + 1500),  // spectral centroid
		float64(size%80 + 20),      // energy mean
		float64(checksum%500 + 100),
	}
}

// Enroll builds a voice profile for a speaker from one sample. Re-enrolling
// the same speaker replaces the previous profile; samples are not averaged.
func Enroll(speakerID string, sample []byte) entities.VoiceProfile {
	return entities.VoiceProfile{
		SpeakerID:   speakerID,
		Features:    ExtractFeatures(sample),
		SampleCount: 1,
		CreatedAt:   time.Now().UTC(),
	}
}

// Identify compares a sample against every profile and returns the best
// match. With no profiles, or a best score under the threshold, the speaker
// is unknown_speaker and the (sub-threshold) confidence is still reported.
func Identify(sample []byte, profiles map[string]entities.VoiceProfile) Match {
	match := Match{
		SpeakerID: entities.UnknownSpeakerID,
		AllScores: make(map[string]float64, len(profiles)),
	}
	if len(profiles) == 0 {
		return match
	}

	features := ExtractFeatures(sample)
	for speakerID, profile := range profiles {
		score := Similarity(features, profile.Features)
		match.AllScores[speakerID] = score
		if score > match.Confidence {
			match.SpeakerID = speakerID
			match.Confidence = score
		}
	}

	if match.Confidence < ConfidenceThreshold {
		match.SpeakerID = entities.UnknownSpeakerID
	}
	return match
}

// Similarity is the average per-feature similarity between two vectors,
// where each feature scores 1 - |a-b| / max(|a|,|b|,1). A feature that is
// zero on both sides counts as identical. Vectors of different lengths are
// compared over their common prefix; two empty vectors score 0.
func Similarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0.0
	}

	var total float64
	for i := 0; i < n; i++ {
		if a[i] == 0 && b[i] == 0 {
			total += 1.0
			continue
		}
		maxVal := math.Max(math.Max(math.Abs(a[i]), math.Abs(b[i])), 1)
		total += 1 - math.Abs(a[i]-b[i])/maxVal
	}
	return total / float64(n)
}
