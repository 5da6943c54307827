package domain

// Topic is one node of the catalog tree. JSON field names follow the
// content repository layout consumed by the HTTP source.
type Topic struct {
	Name      string     `json:"topicName" validate:"required"`
	Subtopics []Subtopic `json:"subTopics" validate:"required,min=1,dive"`
}

// Subtopic names the question set stored behind it.
type Subtopic struct {
	Name   string `json:"name" validate:"required"`
	SetRef string `json:"file" validate:"required"`
}

// QuestionRecord is a single-choice question as stored in the catalog.
// Answer is an index into Options; records where it is out of range are
// rejected at the catalog boundary.
type QuestionRecord struct {
	Text        string   `json:"question" validate:"required"`
	Options     []string `json:"options" validate:"min=2,max=10"`
	Answer      int      `json:"answer"`
	AnswerText  string   `json:"answerText"`
	Explanation string   `json:"explanation"`
}

// CorrectText returns the display text for the correct option.
func (q QuestionRecord) CorrectText() string {
	if q.AnswerText != "" {
		return q.AnswerText
	}
	if q.Answer >= 0 && q.Answer < len(q.Options) {
		return q.Options[q.Answer]
	}
	return ""
}

// OutboundQuestion is what the transport broadcasts as a poll. The ID is
// generated by the session before the question becomes visible.
type OutboundQuestion struct {
	ID      string   `json:"id"`
	Ordinal int      `json:"ordinal"`
	Total   int      `json:"total"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// AnswerEvent is the transport's "participant selected options" signal.
// Only events with exactly one selected index are meaningful here; anything
// else is treated as a cleared or malformed vote.
type AnswerEvent struct {
	ConversationID string
	ParticipantID  string
	QuestionID     string
	OptionIndices  []int
}

// ReviewLine recalls one answered question for the final summary.
type ReviewLine struct {
	Question    string
	Chosen      string
	Correct     string
	Explanation string
}

// ScoreReport is the final tally for one participant.
type ScoreReport struct {
	ConversationID string
	ParticipantID  string
	Correct        int
	Total          int
	Review         []ReviewLine
}

// SessionScope decides whether a quiz session is shared by the whole
// conversation or isolated per participant.
type SessionScope string

const (
	ScopeConversation SessionScope = "conversation"
	ScopeParticipant  SessionScope = "participant"
)

// ParseScope maps a config string to a scope, defaulting to conversation.
func ParseScope(raw string) SessionScope {
	if raw == string(ScopeParticipant) {
		return ScopeParticipant
	}
	return ScopeConversation
}
