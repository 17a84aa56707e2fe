package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/catalog"
)

// prefetcher is the part of the client prefetch drives.
type prefetcher interface {
	Metadata(ctx context.Context, id string) (catalog.Metadata, error)
	Model(ctx context.Context, id string) (string, error)
	PoolSize() int
}

type prefetchResult struct {
	ID      string `json:"id"`
	Model   string `json:"model,omitempty"`
	NoModel bool   `json:"no_model,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newPrefetchCmd(a *app) *cobra.Command {
	var (
		file    string
		skipGLB bool
	)
	cmd := &cobra.Command{
		Use:   "prefetch [id...]",
		Short: "Warm the cache with metadata and models for many products",
		Long: `prefetch loads the product document and 3D model of every identifier given as
arguments or listed one per line in --file ("-" reads stdin). Requests run in
parallel up to the transport pool size. Products without a model are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if file != "" {
				fromFile, err := readIDs(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				ids = append(ids, fromFile...)
			}
			if len(ids) == 0 {
				return cmd.Help()
			}

			results, err := prefetch(cmd.Context(), a.client, a.logger, ids, !skipGLB)
			if err != nil {
				return err
			}
			return reportPrefetch(cmd, a.flagJSON, results)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one identifier per line (\"-\" for stdin)")
	cmd.Flags().BoolVar(&skipGLB, "metadata-only", false, "Skip 3D models")
	return cmd
}

// prefetch runs every identifier through metadata and, optionally, model.
// Per-item failures are recorded, not returned; only cancellation stops the run.
func prefetch(ctx context.Context, c prefetcher, log *zap.Logger, ids []string, models bool) ([]prefetchResult, error) {
	results := make([]prefetchResult, len(ids))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.PoolSize())
	for i, id := range ids {
		g.Go(func() error {
			res := prefetchResult{ID: id}
			defer func() {
				mu.Lock()
				results[i] = res
				mu.Unlock()
			}()

			if _, err := c.Metadata(ctx, id); err != nil {
				res.Error = err.Error()
				log.Debug("prefetch metadata failed", zap.String("id", id), zap.Error(err))
				return ctx.Err()
			}
			if !models {
				return nil
			}
			path, err := c.Model(ctx, id)
			switch {
			case catalog.IsNoModel(err):
				res.NoModel = true
			case err != nil:
				res.Error = err.Error()
				log.Debug("prefetch model failed", zap.String("id", id), zap.Error(err))
			default:
				res.Model = path
			}
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("prefetch interrupted: %w", err)
	}
	return results, nil
}

func reportPrefetch(cmd *cobra.Command, asJSON bool, results []prefetchResult) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if asJSON {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Error != "":
				printErr(cmd.ErrOrStderr(), r.ID, r.Error)
			case r.NoModel:
				printSkip(out, r.ID, "metadata cached, no 3D model")
			case r.Model != "":
				printOK(out, r.ID, r.Model)
			default:
				printOK(out, r.ID, "metadata cached")
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d products failed", failed, len(results))
	}
	return nil
}

// readIDs reads one identifier per line, skipping blanks and # comments.
func readIDs(stdin io.Reader, file string) ([]string, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open id list: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read id list: %w", err)
	}
	return ids, nil
}
