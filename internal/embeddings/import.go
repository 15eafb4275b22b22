package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/grants"
)

// Batch is a set of precomputed vectors produced by an external embedding job.
type Batch struct {
	Projects []ProjectRecord `json:"projects"`
	Grants   []GrantRecord   `json:"grants"`
}

type ProjectRecord struct {
	ID string `json:"id"`
	ProjectEmbeddings
}

type GrantRecord struct {
	ID string `json:"id"`
	GrantEmbeddings
}

type ImportStats struct {
	Projects int
	Grants   int
	// Missing counts records whose row does not exist.
	Missing int
}

func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &batch, nil
}

// Import writes every record of the batch. Records pointing at unknown rows are skipped
// and counted; any other failure stops the import.
func (s *Store) Import(ctx context.Context, batch *Batch) (ImportStats, error) {
	var stats ImportStats
	if batch == nil {
		return stats, nil
	}

	for _, rec := range batch.Projects {
		err := s.SaveProjectEmbeddings(ctx, rec.ID, &rec.ProjectEmbeddings)
		switch {
		case errors.Is(err, grants.ErrNotFound):
			s.logger.Warn("skipping embeddings of unknown project", zap.String("project_id", rec.ID))
			stats.Missing++
		case err != nil:
			return stats, fmt.Errorf("project %s: %w", rec.ID, err)
		default:
			stats.Projects++
		}
	}

	for _, rec := range batch.Grants {
		err := s.SaveGrantEmbeddings(ctx, rec.ID, &rec.GrantEmbeddings)
		switch {
		case errors.Is(err, grants.ErrNotFound):
			s.logger.Warn("skipping embeddings of unknown grant", zap.String("grant_id", rec.ID))
			stats.Missing++
		case err != nil:
			return stats, fmt.Errorf("grant %s: %w", rec.ID, err)
		default:
			stats.Grants++
		}
	}

	return stats, nil
}
