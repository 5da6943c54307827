package catalog

import (
	"context"

	validator "github.com/go-playground/validator/v10"

	"github.com/hhkuy/sums-qz/internal/domain"
)

// Gateway fetches the topic tree and question sets from the content source.
// Implementations wrap transport or parse failures in domain.ErrCatalogUnavailable.
type Gateway interface {
	FetchTopics(ctx context.Context) ([]domain.Topic, error)
	FetchQuestions(ctx context.Context, setRef string) ([]domain.QuestionRecord, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		rec := sl.Current().Interface().(domain.QuestionRecord)
		if rec.Answer < 0 || rec.Answer >= len(rec.Options) {
			sl.ReportError(rec.Answer, "Answer", "answer", "optionindex", "")
		}
	}, domain.QuestionRecord{})
	return v
}

// Filter drops records that fail validation so malformed content never
// reaches the scoring logic.
func Filter(records []domain.QuestionRecord) []domain.QuestionRecord {
	valid := make([]domain.QuestionRecord, 0, len(records))
	for _, rec := range records {
		if err := validate.Struct(rec); err != nil {
			continue
		}
		valid = append(valid, rec)
	}
	return valid
}

// FilterTopics drops topics with no usable subtopics.
func FilterTopics(topics []domain.Topic) []domain.Topic {
	valid := make([]domain.Topic, 0, len(topics))
	for _, t := range topics {
		if err := validate.Struct(t); err != nil {
			continue
		}
		valid = append(valid, t)
	}
	return valid
}
