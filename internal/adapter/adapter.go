// Package adapter defines the sources that drive a geyser.Plugin outside a
// validator: recorded fixtures and live cluster feeds.
package adapter

import (
	"context"
	"errors"

	"github.com/marko911/geyser-kafka/internal/geyser"
	"github.com/marko911/geyser-kafka/internal/plugin"
	"github.com/marko911/geyser-kafka/internal/processor"
)

// Source feeds host notifications into a plugin until ctx is done or the
// source is exhausted.
type Source interface {
	Name() string

	Stream(ctx context.Context, p geyser.Plugin) error
}

// IsFatal reports whether a callback error must stop the source. Transport
// rejections are not fatal; an unreadable replica layout or an unloaded
// plugin is.
func IsFatal(err error) bool {
	return errors.Is(err, processor.ErrUnsupportedVersion) || errors.Is(err, plugin.ErrNotLoaded)
}
