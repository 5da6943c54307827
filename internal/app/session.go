package app

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hhkuy/sums-qz/internal/domain"
)

// Session is the live aggregate of one quiz run: the correlation table from
// dispatched question id to its record, and per-participant tallies.
// All correlation entries are registered at construction, before any question
// becomes visible, so an answer can never reference an unknown id of its own
// session by arriving early.
type Session struct {
	id             string
	conversationID string

	mu        sync.Mutex
	total     int
	order     []string
	pending   map[string]*pendingQuestion
	progress  map[string]*participantProgress
	completed int
	cancelled bool
}

type pendingQuestion struct {
	record     domain.QuestionRecord
	answeredBy map[string]struct{}
}

type participantProgress struct {
	answered int
	correct  int
	choices  map[string]int
}

// newSession builds a session over the sampled records and returns the
// outbound frames to dispatch, in sampled order.
func newSession(conversationID string, records []domain.QuestionRecord) (*Session, []domain.OutboundQuestion) {
	s := &Session{
		id:             uuid.NewString(),
		conversationID: conversationID,
		total:          len(records),
		pending:        make(map[string]*pendingQuestion, len(records)),
		progress:       make(map[string]*participantProgress),
	}
	outbound := make([]domain.OutboundQuestion, len(records))
	for i, rec := range records {
		qid := uuid.NewString()
		s.pending[qid] = &pendingQuestion{record: rec, answeredBy: make(map[string]struct{})}
		s.order = append(s.order, qid)
		outbound[i] = domain.OutboundQuestion{
			ID:      qid,
			Ordinal: i + 1,
			Total:   len(records),
			Text:    rec.Text,
			Options: rec.Options,
		}
	}
	return s, outbound
}

// NewSession is exported for infrastructure layers and tests.
func NewSession(conversationID string, records []domain.QuestionRecord) (*Session, []domain.OutboundQuestion) {
	return newSession(conversationID, records)
}

// ID returns the generated session identifier.
func (s *Session) ID() string {
	return s.id
}

// Total returns the number of questions that still count toward completion.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// applyAnswer scores one inbound answer. It reports whether the event was
// counted and, when the participant just answered every question, their
// final tally. Duplicate, stale, and out-of-range answers are inert.
func (s *Session) applyAnswer(participantID, questionID string, option int) (bool, *domain.ScoreReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false, nil
	}
	q, ok := s.pending[questionID]
	if !ok {
		return false, nil
	}
	if option < 0 || option >= len(q.record.Options) {
		return false, nil
	}
	if _, dup := q.answeredBy[participantID]; dup {
		return false, nil
	}
	q.answeredBy[participantID] = struct{}{}

	p := s.progress[participantID]
	if p == nil {
		p = &participantProgress{choices: make(map[string]int)}
		s.progress[participantID] = p
	}
	p.answered++
	p.choices[questionID] = option
	if option == q.record.Answer {
		p.correct++
	}

	if p.answered == s.total {
		report := s.buildReportLocked(participantID, p)
		delete(s.progress, participantID)
		s.completed++
		return true, report
	}
	return true, nil
}

// unregister removes a question that failed to dispatch and lowers the
// completion bar. It returns tallies for participants who now qualify as
// finished under the reduced total.
func (s *Session) unregister(questionID string) []*domain.ScoreReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[questionID]; !ok {
		return nil
	}
	delete(s.pending, questionID)
	for i, qid := range s.order {
		if qid == questionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.total--

	var reports []*domain.ScoreReport
	for participantID, p := range s.progress {
		if s.total > 0 && p.answered == s.total {
			reports = append(reports, s.buildReportLocked(participantID, p))
			delete(s.progress, participantID)
			s.completed++
		}
	}
	return reports
}

// idle reports whether everyone who engaged has finished.
func (s *Session) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed > 0 && len(s.progress) == 0
}

// cancel turns all later mutations into no-ops.
func (s *Session) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *Session) buildReportLocked(participantID string, p *participantProgress) *domain.ScoreReport {
	review := make([]domain.ReviewLine, 0, len(s.order))
	for _, qid := range s.order {
		q := s.pending[qid]
		choice, ok := p.choices[qid]
		if !ok {
			continue
		}
		review = append(review, domain.ReviewLine{
			Question:    q.record.Text,
			Chosen:      q.record.Options[choice],
			Correct:     q.record.CorrectText(),
			Explanation: q.record.Explanation,
		})
	}
	return &domain.ScoreReport{
		ConversationID: s.conversationID,
		ParticipantID:  participantID,
		Correct:        p.correct,
		Total:          s.total,
		Review:         review,
	}
}
