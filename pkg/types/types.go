// Package types defines the shared types used across all Orato packages.
//
// These types form the lingua franca between the capture coordinator, the
// transcription providers, and the recorder. Each package defines its own
// domain types; cross-cutting data structures live here to avoid circular
// imports.
package types

import "time"

// AudioFrame represents a single frame of PCM audio flowing through the
// capture pipeline. Frames are the atomic unit of audio transport — read
// from the input device, then fanned out to the recorder and the live
// transcription channel.
type AudioFrame struct {
	// Data holds raw PCM samples, 16-bit little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for streaming transcription).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// TranscriptFragment is a piece of live transcription received over the
// streaming channel. Both interim and final fragments use this type.
type TranscriptFragment struct {
	// Text is the transcribed speech content.
	Text string

	// Final indicates whether this fragment is authoritative or may still be
	// revised by a later fragment.
	Final bool

	// Confidence is the provider-reported confidence (0.0–1.0). Zero when the
	// provider does not report one.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
