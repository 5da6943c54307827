package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hhkuy/sums-qz/internal/domain"
)

const topicsFile = "topics.json"

// HTTPSource reads the catalog from a static content host: the topic tree
// lives at {base}/topics.json and each subtopic names the JSON file holding
// its question set.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds a source for the given base URL. A nil client gets a
// default with a request timeout.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSource) FetchTopics(ctx context.Context) ([]domain.Topic, error) {
	var topics []domain.Topic
	if err := s.getJSON(ctx, topicsFile, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (s *HTTPSource) FetchQuestions(ctx context.Context, setRef string) ([]domain.QuestionRecord, error) {
	var records []domain.QuestionRecord
	if err := s.getJSON(ctx, setRef, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", domain.ErrCatalogUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrCatalogUnavailable, path, err)
	}
	return nil
}
