package filtering

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/grants"
)

type excludeFileFilter struct {
	path     string
	enabled  bool
	reason   string
	excluded *grants.Excluded
	logger   *zap.Logger
}

// NewExcludeFile creates a filter that removes grants listed in the exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludeFileFilter{path: path, enabled: path != "", logger: logger}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return f.enabled }

// Validate reads the file once; later calls reuse the parsed list.
func (f *excludeFileFilter) Validate() error {
	if f.path == "" {
		return fmt.Errorf("exclude file path is empty")
	}
	if f.excluded != nil {
		return nil
	}

	excluded, err := grants.LoadExcluded(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded grants from file: %w", err)
	}
	f.excluded = excluded
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, g *grants.Grants) (*grants.Grants, Step, error) {
	initial := g.Len()

	if err := f.Validate(); err != nil {
		return g, Step{}, err
	}

	excluded := f.excluded
	ids := excluded.IDs()
	removed := g.Exclude(func(grant *grants.Grant) bool {
		return slices.Contains(ids, grant.ID)
	})
	if len(removed) > 0 {
		f.logger.Info("excluding grants based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_grants", removed),
			zap.Int("grants_left", g.Len()),
		)
	}

	return g, Step{Initial: initial, Dropped: len(removed), Left: g.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
