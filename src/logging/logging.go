// Package logging builds the slog loggers shared by the engine.
package logging

import (
	"context"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/mxplusb/epsilon/src/config"
)

var ErrUnknownFormat = errors.New("logging: unknown format")

// nopHandler drops every record. Enabled returns false so callers skip
// formatting altogether.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Discard is the logger components fall back to when none is given.
func Discard() *slog.Logger { return slog.New(nopHandler{}) }

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, errors.Wrapf(err, "log level %q", s)
	}
	return level, nil
}

// New writes to w in the configured format at the configured level.
func New(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", cfg.Format)
	}
	return slog.New(h), nil
}
