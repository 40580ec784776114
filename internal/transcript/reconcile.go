// Package transcript produces the single authoritative transcript of a
// finished recording.
//
// Two transcription channels feed a recording session: a live streaming
// channel optimized for latency (teleprompter sync, immediate feedback) and
// a full-fidelity batch re-transcription of the complete local recording,
// optimized for completeness. The [Reconciler] merges them with a fixed
// preference: the batch result always supersedes the live text, even when
// they differ, because the live channel truncates at clip boundaries under
// network pressure. The live text survives only as a last resort when the
// batch pass hears nothing at all.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orato-voice/orato/internal/observe"
	"github.com/orato-voice/orato/pkg/provider/stt"
)

// ErrEmptyAudio indicates that neither the full re-transcription nor the
// live streaming channel produced any text: the recording is silence or
// contains no recognizable speech. The user must re-record; analysis never
// runs on an empty transcript.
var ErrEmptyAudio = errors.New("transcript: no speech detected in recording")

// Reconciler turns a finalized audio blob plus the accumulated live
// transcript into one authoritative transcript string.
type Reconciler struct {
	transcriber stt.Transcriber
	log         *slog.Logger
	metrics     *observe.Metrics
}

// NewReconciler returns a Reconciler that re-transcribes recordings through
// transcriber. log may be nil, in which case [slog.Default] is used;
// metrics may be nil to disable telemetry.
func NewReconciler(transcriber stt.Transcriber, log *slog.Logger, metrics *observe.Metrics) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{transcriber: transcriber, log: log, metrics: metrics}
}

// Reconcile re-transcribes audio (with MIME type mime) and returns the
// authoritative transcript.
//
// A non-empty batch result unconditionally supersedes live. An empty batch
// result falls back to the live transcript. When both are empty the call
// fails with [ErrEmptyAudio]. A hard transcription error propagates to the
// caller: the transcriber is expected to be a fallback chain, so an error
// here means every provider failed and there is no authoritative text to be
// had.
func (r *Reconciler) Reconcile(ctx context.Context, audio []byte, mime, live string) (string, error) {
	start := time.Now()
	full, err := r.transcriber.Transcribe(ctx, audio, mime)
	if r.metrics != nil {
		r.metrics.RecordTranscribeDuration(ctx, time.Since(start), errStatus(err))
	}
	if err != nil {
		return "", fmt.Errorf("full re-transcription: %w", err)
	}

	full = strings.TrimSpace(full)
	live = strings.TrimSpace(live)

	if full != "" {
		return full, nil
	}
	if live != "" {
		r.log.Warn("full re-transcription empty, falling back to live transcript",
			"mime", mime, "audio_bytes", len(audio), "live_chars", len(live))
		return live, nil
	}
	return "", ErrEmptyAudio
}

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
