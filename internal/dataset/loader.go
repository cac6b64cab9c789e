// Package dataset loads backtest examples from JSONL files.
package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ksadov/backcast/internal/models"
)

// Filters restrict which examples enter an evaluation run.
type Filters struct {
	// Cutoff excludes examples created before the model's knowledge cutoff,
	// since the model could know their resolutions from pretraining.
	Cutoff time.Time

	ExcludeGroups []string
	MaxExamples   int // 0 = no cap
}

// Loader loads datasets from local JSONL files.
type Loader struct {
	filters Filters
}

// NewLoader creates a new dataset loader.
func NewLoader(filters Filters) *Loader {
	return &Loader{filters: filters}
}

// LoadFromPath loads one JSONL dataset file, one example per line.
// Filtered-out lines are skipped silently; malformed lines are an error.
func (l *Loader) LoadFromPath(ctx context.Context, path string) (*models.Dataset, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening dataset file: %w", err)
	}
	defer f.Close()

	var examples []models.Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if l.filters.MaxExamples > 0 && len(examples) >= l.filters.MaxExamples {
			break
		}

		var ex models.Example
		if err := json.Unmarshal([]byte(line), &ex); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", filepath.Base(absPath), lineNo, err)
		}
		if ex.ID == "" {
			ex.ID = fmt.Sprintf("%s:%d", strings.TrimSuffix(filepath.Base(absPath), ".jsonl"), lineNo)
		}
		if !l.usable(ex) {
			continue
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset file: %w", err)
	}

	if len(examples) == 0 {
		return nil, fmt.Errorf("no usable examples in dataset %s", absPath)
	}

	name := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	return &models.Dataset{
		Name:     name,
		Examples: examples,
	}, nil
}

// LoadAll loads multiple dataset files concurrently, preserving the order of
// the path list in the returned slice.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]models.Dataset, error) {
	datasets := make([]models.Dataset, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			ds, err := l.LoadFromPath(ctx, path)
			if err != nil {
				return err
			}
			datasets[i] = *ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return datasets, nil
}

// usable applies the knowledge-cutoff and group filters.
func (l *Loader) usable(ex models.Example) bool {
	if !l.filters.Cutoff.IsZero() && ex.CreatedTime > 0 {
		created := time.UnixMilli(ex.CreatedTime)
		if created.Before(l.filters.Cutoff) {
			return false
		}
	}
	for _, slug := range ex.GroupSlugs {
		if slices.Contains(l.filters.ExcludeGroups, slug) {
			return false
		}
	}
	return true
}
