// Package jsonfile persists small collections as JSON array files.
//
// A Collection owns its file through a single goroutine. Reads and
// read-modify-write cycles are queued to that goroutine and run one at a
// time, so concurrent callers never interleave partial updates. Every write
// goes to a temporary file that is renamed over the original.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned by operations on a closed collection.
	ErrClosed = errors.New("collection closed")

	// ErrCorrupt marks a collection file that could not be decoded.
	// It is logged and never returned to callers; the file is reset instead.
	ErrCorrupt = errors.New("collection file corrupt")
)

type op[T any] struct {
	mutate func(items []T) ([]T, error)
	read   func(items []T) error
	reply  chan error
}

// Collection is a JSON array of T stored in a single file.
type Collection[T any] struct {
	path   string
	logger zerolog.Logger
	items  []T

	ops       chan op[T]
	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// Open loads the collection at path, creating the file and its directory if
// they do not exist. A file that fails to decode is reset to an empty array.
func Open[T any](path string, logger zerolog.Logger) (*Collection[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	c := &Collection[T]{
		path:    path,
		logger:  logger.With().Str("collection", filepath.Base(path)).Logger(),
		ops:     make(chan op[T]),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	go c.run()
	return c, nil
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string {
	return c.path
}

// Read runs fn against the current items. fn must not retain the slice.
func (c *Collection[T]) Read(ctx context.Context, fn func(items []T) error) error {
	return c.submit(ctx, op[T]{read: fn})
}

// Mutate runs fn against the current items and persists the slice it returns.
// If fn returns an error nothing is written and the error is passed through.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	return c.submit(ctx, op[T]{mutate: fn})
}

// Close stops the writer goroutine. Pending operations finish first.
func (c *Collection[T]) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	<-c.stopped
	return nil
}

func (c *Collection[T]) submit(ctx context.Context, o op[T]) error {
	o.reply = make(chan error, 1)

	select {
	case c.ops <- o:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collection[T]) run() {
	defer close(c.stopped)
	for {
		select {
		case o := <-c.ops:
			o.reply <- c.apply(o)
		case <-c.done:
			return
		}
	}
}

func (c *Collection[T]) apply(o op[T]) error {
	if o.read != nil {
		return o.read(c.items)
	}

	working := make([]T, len(c.items))
	copy(working, c.items)

	next, err := o.mutate(working)
	if err != nil {
		return err
	}
	if next == nil {
		next = []T{}
	}
	if err := c.write(next); err != nil {
		return err
	}
	c.items = next
	return nil
}

func (c *Collection[T]) load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.items = []T{}
		return c.write(c.items)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", c.path, err)
	}

	var items []T
	if len(data) > 0 {
		err = json.Unmarshal(data, &items)
	}
	if err != nil || items == nil {
		if err == nil {
			err = errors.New("not a JSON array")
		}
		c.logger.Error().
			Err(fmt.Errorf("%w: %v", ErrCorrupt, err)).
			Str("path", c.path).
			Msg("resetting collection to empty")
		c.items = []T{}
		return c.write(c.items)
	}

	c.items = items
	return nil
}

func (c *Collection[T]) write(items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", c.path, err)
	}
	return nil
}
