// SPDX-License-Identifier: MIT

// Package source produces acceleration samples for the engine. Every source
// delivers analysis.Sample values with millisecond timestamps that increase
// within one session.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shaker/internal/analysis"
	applog "shaker/internal/log"
)

var logger = applog.Named("source")

// ErrUnknownKind is returned by ParseKind for unrecognised source names.
var ErrUnknownKind = errors.New("unknown source kind")

// Source feeds samples into out until ctx is cancelled or the input ends.
// Run returns nil when the input is exhausted or ctx is cancelled and an
// error when the input fails. Close releases resources held outside Run.
type Source interface {
	Run(ctx context.Context, out chan<- analysis.Sample) error
	Close() error
}

// Kind names a Source implementation.
type Kind string

const (
	KindSynthetic Kind = "synthetic"
	KindWAV       Kind = "wav"
	KindWebSocket Kind = "websocket"
	KindNATS      Kind = "nats"
	KindAudio     Kind = "audio"
)

// ParseKind converts a config name (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindSynthetic, KindWAV, KindWebSocket, KindNATS, KindAudio:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// emit blocks until s is delivered or ctx is done. Replay sources use it
// so that no recorded sample is lost.
func emit(ctx context.Context, out chan<- analysis.Sample, s analysis.Sample) error {
	select {
	case out <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// offer delivers s without blocking and reports whether it was accepted.
// Live sources drop samples when the engine falls behind.
func offer(out chan<- analysis.Sample, s analysis.Sample) bool {
	select {
	case out <- s:
		return true
	default:
		return false
	}
}
