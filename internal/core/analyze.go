package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvimport/internal/charset"
	"github.com/JonMunkholm/csvimport/internal/csvparse"
	"github.com/JonMunkholm/csvimport/internal/logging"
	"github.com/JonMunkholm/csvimport/internal/mapping"
)

// AnalyzeFiles runs the open pipeline on several files in parallel without
// creating sessions. Results are in input order. A problem with one file is
// reported in its FileAnalysis.Error; only cancellation or a full limiter
// fail the whole call.
func (s *Service) AnalyzeFiles(ctx context.Context, files []OpenRequest) ([]FileAnalysis, error) {
	results := make([]FileAnalysis, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.AnalyzeParallelism)

	for i, f := range files {
		g.Go(func() error {
			if err := s.limiter.Acquire(gctx); err != nil {
				return err
			}
			defer s.limiter.Release()

			results[i] = s.analyze(f)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze files: %w", err)
	}

	logging.FromContext(ctx).Info("files analyzed", "count", len(files))
	return results, nil
}

// analyze is the session-free version of Open. TargetKey is optional; without
// it no mapping is computed.
func (s *Service) analyze(req OpenRequest) FileAnalysis {
	out := FileAnalysis{
		FileName: req.FileName,
		Size:     len(req.Data),
		Headers:  []string{},
		Errors:   []string{},
	}

	var (
		target    Target
		hasTarget bool
		err       error
	)
	if req.TargetKey != "" {
		target, err = s.validateOpen(req)
		hasTarget = err == nil
	} else {
		err = s.checkSize(req)
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	report := charset.Sniff(req.Data)
	out.Encoding = EncodingInfo{
		Current:  report.Encoding,
		Detected: report.Encoding,
		Hint:     report.Hint,
		BOM:      report.BOM,
	}

	text, err := charset.Decode(req.Data, report.Encoding)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	opts := csvparse.DefaultOptions()
	opts.Delimiter = csvparse.DetectDelimiter(text)
	out.Delimiter = string(opts.Delimiter)

	res := csvparse.Parse(text, opts)
	out.Headers = res.Headers
	out.TotalRows = len(res.Data)
	out.Errors = res.Errors

	if hasTarget {
		out.Mapping = mapping.AutoMatch(res.Headers, target.Fields, nil, s.cfg.Match)
		out.Issues = mapping.Validate(res.Headers, target.Fields, out.Mapping)
	}
	return out
}
