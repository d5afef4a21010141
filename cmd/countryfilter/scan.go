package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"countryfilter/internal/engine"
	"countryfilter/internal/tree"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

// scanOrigin keeps one-shot scans from being mistaken for the live engine
const scanOrigin = "scan"

func newScanCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "scan FILE",
		Short: "Filter a saved timeline page with the stored settings",
		Long: `Scan parses FILE, applies the stored settings and writes the
filtered page to --out (or stdout). Counters are persisted as usual.
Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			html, err := a.scan(cmd.Context(), r)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), html)
				return err
			}
			return writeSnapshot(out, html)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the filtered page here atomically")
	return cmd
}

// scan runs an engine over r until its startup scan is done and returns
// the rendered result
func (a *app) scan(ctx context.Context, r io.Reader) (string, error) {
	doc, err := tree.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	store, err := a.cfg.OpenStore()
	if err != nil {
		return "", err
	}
	defer closeQuietly(store)

	eng := engine.New(engine.Config{
		Store:     store,
		Origin:    scanOrigin,
		Document:  doc,
		CacheSize: a.cfg.ClassifierCache,
	})

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case <-eng.Ready():
	case err := <-done:
		done <- err
		if err == nil {
			err = ctx.Err()
		}
		return "", err
	}
	return eng.Snapshot(ctx)
}

func writeSnapshot(path, html string) error {
	if err := renameio.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
