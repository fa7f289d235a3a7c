// Package analysis runs duplicate detection over scanned trees.
package analysis

import (
	"context"
	"fmt"

	"github.com/panbanda/cda/internal/cache"
	"github.com/panbanda/cda/internal/fileproc"
	scannerSvc "github.com/panbanda/cda/internal/service/scanner"
	"github.com/panbanda/cda/pkg/analyzer/duplicates"
	"github.com/panbanda/cda/pkg/config"
)

// Service orchestrates code analysis operations.
type Service struct {
	config *config.Config
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options configures a single run.
type Options struct {
	// OnProgress is called once per processed file.
	OnProgress func()
	// NoCache disables the token cache even when the config enables it.
	NoCache bool
	// Diagnostics receives per-file failures. May be nil.
	Diagnostics *fileproc.ProcessingErrors
}

// Analyze compares the new files of scan against its old files.
func (s *Service) Analyze(ctx context.Context, scan *scannerSvc.ScanResult, opts Options) (*duplicates.Analysis, error) {
	analyzerOpts := []duplicates.Option{
		duplicates.WithConfig(s.config.Duplicates),
	}

	if s.config.Cache.Enabled && !opts.NoCache {
		c, err := cache.New(s.config.Cache.Dir, s.config.Cache.TTL, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		analyzerOpts = append(analyzerOpts, duplicates.WithCache(c))
	}
	if opts.OnProgress != nil {
		analyzerOpts = append(analyzerOpts, duplicates.WithProgress(opts.OnProgress))
	}

	return duplicates.New(analyzerOpts...).Analyze(ctx, scan.NewFiles, scan.OldFiles, opts.Diagnostics)
}

// Run scans trees with the service configuration and analyzes them.
func (s *Service) Run(ctx context.Context, trees scannerSvc.Trees, opts Options) (*duplicates.Analysis, *scannerSvc.ScanResult, error) {
	scan, err := scannerSvc.New(scannerSvc.WithConfig(s.config)).Scan(trees)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.Analyze(ctx, scan, opts)
	if err != nil {
		return nil, scan, err
	}
	return a, scan, nil
}
