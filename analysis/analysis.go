/*
	VoyageAtlas
	Copyright (c) 2025 The VoyageAtlas Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package analysis runs the media intelligence pipeline over a batch of
// files: metadata extraction in parallel, then a single clustering pass.
package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/voyageatlas/voyageatlas/cluster"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MediaAnalyzer extracts intelligence from one media file. It must not
// fail; problems with the file yield absent fields.
type MediaAnalyzer interface {
	Analyze(ctx context.Context, path string) voyage.MediaIntelligence
}

// File is a member of a batch.
type File struct {
	// The name reported in suggestions, usually the original upload
	// name. If empty, the base name of Path is used.
	Name string

	// Where the file can be read from.
	Path string
}

func (f File) name() string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.Path)
}

// Result is the outcome of analyzing a batch.
type Result struct {
	BatchID       string                   `json:"batch_id"`
	AnalyzedCount int                      `json:"analyzed_count"`
	Suggestions   []voyage.EventSuggestion `json:"suggestions"`

	// The intelligence of each file, in input order.
	Media []cluster.Item `json:"-"`
}

// Batch analyzes batches of files.
type Batch struct {
	Analyzer MediaAnalyzer

	// Maximum number of files analyzed at once. Defaults to the
	// number of CPUs.
	Workers int

	Clustering cluster.Options

	Logger *zap.Logger
}

// Run analyzes every file and clusters the results. Files are
// analyzed independently; clustering starts only after all of them
// are done. An error is returned only if ctx is canceled first.
func (b *Batch) Run(ctx context.Context, files []File) (Result, error) {
	logger := voyage.LoggerOrDefault(b.Logger).Named("analysis")
	result := Result{
		BatchID: uuid.NewString(),
		Media:   make([]cluster.Item, len(files)),
	}
	logger = logger.With(zap.String("batch_id", result.BatchID))

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// each goroutine writes only its own slot
			result.Media[i] = cluster.Item{
				Filename:     f.name(),
				Intelligence: b.Analyzer.Analyze(gctx, f.Path),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("analyzing batch: %w", err)
	}

	result.AnalyzedCount = len(files)
	result.Suggestions = cluster.Cluster(result.Media, b.Clustering)

	logger.Info("analyzed batch",
		zap.Int("files", result.AnalyzedCount),
		zap.Int("suggestions", len(result.Suggestions)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}
