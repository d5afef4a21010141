// Package inbox feeds HTML fragments dropped into a directory into the
// engine's document. Producers should write under a temporary name and
// rename into place so a fragment is never read half-written.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Ext is the suffix of files the inbox picks up.
const Ext = ".html"

// ErrTooLarge is returned for fragments over the size limit.
var ErrTooLarge = errors.New("fragment exceeds size limit")

// Renderer appends a fragment to the live document.
type Renderer interface {
	Render(ctx context.Context, fragment string) error
}

// Inbox watches Dir for fragment files.
type Inbox struct {
	dir      string
	maxSize  datasize.ByteSize
	renderer Renderer
}

// New creates an inbox. A zero maxSize means 1MB.
func New(dir string, maxSize datasize.ByteSize, r Renderer) *Inbox {
	if maxSize == 0 {
		maxSize = datasize.MB
	}
	return &Inbox{dir: dir, maxSize: maxSize, renderer: r}
}

// Run drains existing fragments in name order, then renders new ones as
// they appear until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch before draining so nothing lands in the gap unseen
	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	if err := in.Drain(ctx); err != nil {
		return err
	}

	log.Info().Str("dir", in.dir).Msg("Watching inbox")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isFragment(ev.Name) {
				continue
			}
			if err := in.process(ctx, ev.Name); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Warn().Err(err).Str("file", ev.Name).Msg("Failed to render fragment")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Inbox watcher error")
		}
	}
}

// Drain renders every fragment currently in the directory.
func (in *Inbox) Drain(ctx context.Context) error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isFragment(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := in.process(ctx, filepath.Join(in.dir, name)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("file", name).Msg("Failed to render fragment")
		}
	}
	return nil
}

func (in *Inbox) process(ctx context.Context, path string) error {
	data, err := in.read(path)
	if errors.Is(err, os.ErrNotExist) {
		// already consumed
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			_ = os.Remove(path)
		}
		return err
	}

	if err := in.renderer.Render(ctx, string(data)); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}

	log.Debug().
		Str("file", filepath.Base(path)).
		Str("size", datasize.ByteSize(len(data)).HumanReadable()).
		Msg("Rendered fragment")
	return nil
}

func (in *Inbox) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(in.maxSize.Bytes())+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > in.maxSize.Bytes() {
		return nil, fmt.Errorf("%w (%s)", ErrTooLarge, in.maxSize.HumanReadable())
	}
	return data, nil
}

func isFragment(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, Ext) && !strings.HasPrefix(base, ".")
}
