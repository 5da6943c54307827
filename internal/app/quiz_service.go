package app

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hhkuy/sums-qz/internal/catalog"
	"github.com/hhkuy/sums-qz/internal/domain"
)

// Dispatcher is the outbound half of the chat transport: deliver a text
// message to a conversation, or broadcast a single-choice question to it.
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendQuestion(ctx context.Context, conversationID string, q domain.OutboundQuestion) error
}

// DialogRepository stores active selection dialogs keyed by conversation.
type DialogRepository interface {
	Put(conversationID string, d *Dialog)
	Get(conversationID string) (*Dialog, bool)
	Delete(conversationID string)
}

// SessionRepository abstracts how live quiz sessions are stored
// (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Put(key string, s *Session)
	Get(key string) (*Session, bool)
	Delete(key string)
}

// Listing is what the transport renders after a dialog step: either a list
// of numbered items to pick from, or a free-text prompt.
type Listing struct {
	Title   string   `json:"title"`
	Items   []string `json:"items,omitempty"`
	AskText string   `json:"askText,omitempty"`
}

// Options configures a QuizService.
type Options struct {
	Scope  domain.SessionScope
	Seed   int64
	Logger *logrus.Logger
}

// QuizService drives the selection dialog and the quiz session lifecycle.
type QuizService struct {
	dialogs  DialogRepository
	sessions SessionRepository
	catalog  catalog.Gateway
	sender   Dispatcher
	reporter *Reporter
	scope    domain.SessionScope
	log      *logrus.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizService(dialogs DialogRepository, sessions SessionRepository, gateway catalog.Gateway, sender Dispatcher, opts Options) *QuizService {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	scope := opts.Scope
	if scope == "" {
		scope = domain.ScopeConversation
	}
	return &QuizService{
		dialogs:  dialogs,
		sessions: sessions,
		catalog:  gateway,
		sender:   sender,
		reporter: NewReporter(sender, log),
		scope:    scope,
		log:      log,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// BeginSelection fetches the topic tree and opens (or restarts) the dialog
// for a conversation. On a catalog failure no dialog state is created.
func (s *QuizService) BeginSelection(ctx context.Context, conversationID string) (Listing, error) {
	topics, err := s.catalog.FetchTopics(ctx)
	if err != nil {
		return Listing{}, err
	}
	topics = catalog.FilterTopics(topics)
	if len(topics) == 0 {
		return Listing{}, fmt.Errorf("%w: no topics", domain.ErrCatalogUnavailable)
	}
	d := newDialog(topics)
	s.dialogs.Put(conversationID, d)
	return Listing{Title: "Choose a topic:", Items: d.topicNames()}, nil
}

// ChooseTopic picks a topic by index and lists its subtopics.
func (s *QuizService) ChooseTopic(ctx context.Context, conversationID string, index int) (Listing, error) {
	d, ok := s.dialogs.Get(conversationID)
	if !ok {
		return Listing{}, domain.ErrNoDialog
	}
	items, topicName, err := d.chooseTopic(index)
	if err != nil {
		return Listing{}, err
	}
	return Listing{Title: "Choose a subtopic of " + topicName + ":", Items: items}, nil
}

// ChooseSubtopic picks a subtopic by index and asks for a question count.
func (s *QuizService) ChooseSubtopic(ctx context.Context, conversationID string, index int) (Listing, error) {
	d, ok := s.dialogs.Get(conversationID)
	if !ok {
		return Listing{}, domain.ErrNoDialog
	}
	if _, err := d.chooseSubtopic(index); err != nil {
		return Listing{}, err
	}
	return Listing{AskText: "How many questions do you want?"}, nil
}

// GoBack moves the dialog one phase backward and re-renders the listing.
func (s *QuizService) GoBack(ctx context.Context, conversationID string) (Listing, error) {
	d, ok := s.dialogs.Get(conversationID)
	if !ok {
		return Listing{}, domain.ErrNoDialog
	}
	items, topicName, atTopics := d.back()
	if atTopics {
		return Listing{Title: "Choose a topic:", Items: items}, nil
	}
	return Listing{Title: "Choose a subtopic of " + topicName + ":", Items: items}, nil
}

// SubmitCount parses the requested question count, starts the quiz session,
// and discards the dialog. A count above the available questions is clamped.
// The participant id matters only when sessions are scoped per participant.
func (s *QuizService) SubmitCount(ctx context.Context, conversationID, participantID, raw string) error {
	d, ok := s.dialogs.Get(conversationID)
	if !ok {
		return domain.ErrNoDialog
	}
	sub, err := d.selection()
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return domain.ErrInvalidCount
	}
	if err := s.startSession(ctx, conversationID, participantID, sub.SetRef, n); err != nil {
		return err
	}
	s.dialogs.Delete(conversationID)
	return nil
}

// HandleAnswer consumes one asynchronous answer event. Malformed events,
// unknown question ids, duplicate answers, and cancelled sessions are all
// silently ignored.
func (s *QuizService) HandleAnswer(ctx context.Context, ev domain.AnswerEvent) {
	if len(ev.OptionIndices) != 1 {
		return
	}
	key := s.sessionKey(ev.ConversationID, ev.ParticipantID)
	session, ok := s.sessions.Get(key)
	if !ok {
		return
	}
	counted, report := session.applyAnswer(ev.ParticipantID, ev.QuestionID, ev.OptionIndices[0])
	if !counted {
		return
	}
	if report != nil {
		s.finish(ctx, key, session, report)
	}
}

// Cancel discards any dialog and session state for the conversation. An
// in-flight answer for the cancelled session becomes a no-op.
func (s *QuizService) Cancel(ctx context.Context, conversationID, participantID string) {
	s.dialogs.Delete(conversationID)
	key := s.sessionKey(conversationID, participantID)
	if session, ok := s.sessions.Get(key); ok {
		session.cancel()
		s.sessions.Delete(key)
	}
}

func (s *QuizService) startSession(ctx context.Context, conversationID, participantID, setRef string, requested int) error {
	records, err := s.catalog.FetchQuestions(ctx, setRef)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return domain.ErrEmptyQuestionSet
	}
	valid := catalog.Filter(records)
	if len(valid) == 0 {
		return domain.ErrNoValidQuestions
	}

	sampled := s.sample(valid, requested)
	session, outbound := newSession(conversationID, sampled)

	key := s.sessionKey(conversationID, participantID)
	if old, ok := s.sessions.Get(key); ok {
		old.cancel()
	}
	s.sessions.Put(key, session)

	s.log.WithFields(logrus.Fields{
		"conversation": conversationID,
		"session":      session.ID(),
		"set":          setRef,
		"questions":    len(sampled),
	}).Info("quiz session started")

	for _, q := range outbound {
		if err := s.sender.SendQuestion(ctx, conversationID, q); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"session":  session.ID(),
				"question": q.ID,
			}).Warn("dispatch failed, skipping question")
			for _, report := range session.unregister(q.ID) {
				s.finish(ctx, key, session, report)
			}
		}
	}

	if session.Total() == 0 {
		s.sessions.Delete(key)
		return domain.ErrDispatchFailed
	}
	return nil
}

func (s *QuizService) finish(ctx context.Context, key string, session *Session, report *domain.ScoreReport) {
	s.reporter.Report(ctx, *report)
	if s.scope == domain.ScopeParticipant || session.idle() {
		session.cancel()
		s.sessions.Delete(key)
	}
}

func (s *QuizService) sessionKey(conversationID, participantID string) string {
	if s.scope == domain.ScopeParticipant {
		return conversationID + "/" + participantID
	}
	return conversationID
}

// sample picks min(n, len(records)) records without replacement.
func (s *QuizService) sample(records []domain.QuestionRecord, n int) []domain.QuestionRecord {
	if n > len(records) {
		n = len(records)
	}
	picked := make([]domain.QuestionRecord, len(records))
	copy(picked, records)
	s.rndMu.Lock()
	s.rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	s.rndMu.Unlock()
	return picked[:n]
}
