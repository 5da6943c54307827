package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/hhkuy/sums-qz/internal/domain"
)

// CatalogSource loads the topic tree and question sets from Postgres JSONB.
type CatalogSource struct {
	pool *pgxpool.Pool
}

func NewCatalogSource(pool *pgxpool.Pool) *CatalogSource {
	return &CatalogSource{pool: pool}
}

func (s *CatalogSource) FetchTopics(ctx context.Context) ([]domain.Topic, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM topics ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: load topics: %v", domain.ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan topic: %v", domain.ErrCatalogUnavailable, err)
		}
		var topic domain.Topic
		if err := json.Unmarshal(raw, &topic); err != nil {
			return nil, fmt.Errorf("%w: unmarshal topic: %v", domain.ErrCatalogUnavailable, err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load topics: %v", domain.ErrCatalogUnavailable, err)
	}
	return topics, nil
}

func (s *CatalogSource) FetchQuestions(ctx context.Context, setRef string) ([]domain.QuestionRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE ref=$1`, setRef).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: load question set %s: %v", domain.ErrCatalogUnavailable, setRef, err)
	}
	var records []domain.QuestionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: unmarshal question set %s: %v", domain.ErrCatalogUnavailable, setRef, err)
	}
	return records, nil
}
