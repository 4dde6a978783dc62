package vecstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

// ErrSnapshotNotFound is returned by LoadCandidates for an unknown run id
var ErrSnapshotNotFound = errors.New("vecstore: snapshot not found")

// SaveCandidates persists a collected candidate set under runID. Row
// order is kept through an explicit sequence column.
func (s *Store) SaveCandidates(ctx context.Context, runID string, set *crossmodal.CandidateSet) error {
	if runID == "" {
		return fmt.Errorf("vecstore: empty run id")
	}
	if err := set.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots(run_id, dim) VALUES(?, ?)`, runID, set.Dim()); err != nil {
		return fmt.Errorf("vecstore: create snapshot %s: %w", runID, err)
	}

	captions, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_captions(run_id, seq, caption_id, image_id, mean, variance) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer captions.Close()
	for i := range set.CaptionIDs {
		if _, err := captions.ExecContext(ctx, runID, i, set.CaptionIDs[i], set.CaptionImageIDs[i],
			EncodeEmbedding(set.Means[i]), EncodeEmbedding(set.Variances[i])); err != nil {
			return fmt.Errorf("vecstore: save caption row %d: %w", i, err)
		}
	}

	images, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_images(run_id, seq, image_id, vector) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer images.Close()
	for j := range set.ImageIDs {
		if _, err := images.ExecContext(ctx, runID, j, set.ImageIDs[j], EncodeEmbedding(set.Vectors[j])); err != nil {
			return fmt.Errorf("vecstore: save image row %d: %w", j, err)
		}
	}

	return tx.Commit()
}

// LoadCandidates restores the candidate set saved under runID
func (s *Store) LoadCandidates(ctx context.Context, runID string) (*crossmodal.CandidateSet, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM snapshots WHERE run_id = ?`, runID).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	set := &crossmodal.CandidateSet{}
	if err := s.loadCaptions(ctx, runID, set); err != nil {
		return nil, err
	}
	if err := s.loadImages(ctx, runID, set); err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if got := set.Dim(); got != 0 && got != dim {
		return nil, fmt.Errorf("%w: snapshot %s recorded dim %d, rows have %d", crossmodal.ErrShapeMismatch, runID, dim, got)
	}
	return set, nil
}

func (s *Store) loadCaptions(ctx context.Context, runID string, set *crossmodal.CandidateSet) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT caption_id, image_id, mean, variance FROM snapshot_captions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var captionID, imageID int64
		var meanBlob, varBlob []byte
		if err := rows.Scan(&captionID, &imageID, &meanBlob, &varBlob); err != nil {
			return err
		}
		mean, err := DecodeEmbedding(meanBlob)
		if err != nil {
			return err
		}
		variance, err := DecodeEmbedding(varBlob)
		if err != nil {
			return err
		}
		set.Means = append(set.Means, mean)
		set.Variances = append(set.Variances, variance)
		set.CaptionIDs = append(set.CaptionIDs, captionID)
		set.CaptionImageIDs = append(set.CaptionImageIDs, imageID)
	}
	return rows.Err()
}

func (s *Store) loadImages(ctx context.Context, runID string, set *crossmodal.CandidateSet) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image_id, vector FROM snapshot_images WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var imageID int64
		var blob []byte
		if err := rows.Scan(&imageID, &blob); err != nil {
			return err
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return err
		}
		set.Vectors = append(set.Vectors, vec)
		set.ImageIDs = append(set.ImageIDs, imageID)
	}
	return rows.Err()
}
