package retouch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"retouch/internal/domain/agent/loop"
	"retouch/internal/infra/codec"
	"retouch/internal/shared/utils/id"
)

// BatchReport collects the sessions of one Batch call in file-name order.
type BatchReport struct {
	BatchID string
	Reports []*Report
}

// Failed counts sessions that did not end satisfied.
func (b *BatchReport) Failed() int {
	n := 0
	for _, r := range b.Reports {
		if r.Err != nil || r.Outcome != loop.OutcomeSatisfied {
			n++
		}
	}
	return n
}

// Batch runs one independent session per supported image in dir, at most
// Concurrency at a time. A failing session is recorded in its report and
// does not stop the others; cancelling ctx does.
func (s *Service) Batch(ctx context.Context, dir string) (*BatchReport, error) {
	images, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	batch := &BatchReport{BatchID: id.NewBatchID(), Reports: make([]*Report, len(images))}
	if len(images) == 0 {
		return batch, nil
	}
	s.logger.Info("%s: %d images from %s, concurrency %d", batch.BatchID, len(images), dir, s.settings.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)
	for i, path := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := s.Run(gctx, RunRequest{ImagePath: path})
			if report == nil {
				report = &Report{Image: filepath.Base(path), Outcome: loop.OutcomeAborted}
			}
			report.Err = err
			batch.Reports[i] = report
			if err != nil {
				s.logger.Warn("%s: %s failed: %v", batch.BatchID, path, err)
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		batch.Reports = compact(batch.Reports)
		return batch, fmt.Errorf("batch %s: %w", batch.BatchID, err)
	}
	return batch, nil
}

// ListImages returns the supported image files directly inside dir, sorted.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch dir: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !codec.IsSupported(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func compact(reports []*Report) []*Report {
	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
