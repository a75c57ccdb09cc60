// SPDX-License-Identifier: MIT
package control

import "shaker/internal/analysis"

// ShakeMode follows the user's shaking through an analysis.Tracker.
type ShakeMode struct {
	*analysis.Tracker
}

var (
	_ Mode           = (*ShakeMode)(nil)
	_ SampleConsumer = (*ShakeMode)(nil)
)

// NewShake creates a ShakeMode; it starts only if opts.AutoStart is set.
func NewShake(opts analysis.TrackerOptions) *ShakeMode {
	return &ShakeMode{Tracker: analysis.NewTracker(opts)}
}

func (s *ShakeMode) Kind() Kind { return Shake }
