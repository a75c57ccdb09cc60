// SPDX-License-Identifier: MIT

// Package transport delivers position frames to the outside world.
package transport

// Transport defines a generic interface for sending frames or events.
// Implementations must be safe for concurrent use and must not block the
// caller for long; slow consumers drop data instead.
type Transport interface {
	Send(data any) error
	Close() error
}

// Frame is one rendered indicator position with the estimate behind it.
type Frame struct {
	Session        string  `json:"session"`
	Seq            uint64  `json:"seq"`
	TimeMs         float64 `json:"time_ms"`
	Mode           string  `json:"mode"`
	Started        bool    `json:"started"`
	Position       float64 `json:"position"`
	PeriodMs       float64 `json:"period_ms"`
	FrequencyHz    float64 `json:"frequency_hz"`
	Amplitude      float64 `json:"amplitude"`
	Phase          float64 `json:"phase"`
	Detected       bool    `json:"detected"`
	HalfAmplitude  float64 `json:"half_amplitude"`
	PeriodMeanMs   float64 `json:"period_mean_ms"`
	PeriodStdDevMs float64 `json:"period_stddev_ms"`
}

// FrameProvider exposes the most recent frame to pull-based publishers.
// The boolean is false until the first frame has been rendered.
type FrameProvider interface {
	LatestFrame() (Frame, bool)
}
