package app

import (
	"sync"

	"github.com/hhkuy/sums-qz/internal/domain"
)

type dialogPhase int

const (
	phaseTopic dialogPhase = iota
	phaseSubtopic
	phaseCount
)

// Dialog is the per-conversation selection state machine walking
// topic -> subtopic -> question count. It is created with a fetched topic
// tree and discarded once a session starts or the flow is cancelled.
type Dialog struct {
	mu       sync.Mutex
	phase    dialogPhase
	topics   []domain.Topic
	topicIdx int
	subIdx   int
}

func newDialog(topics []domain.Topic) *Dialog {
	return &Dialog{phase: phaseTopic, topics: topics, topicIdx: -1, subIdx: -1}
}

// NewDialog is exported for infrastructure layers and tests.
func NewDialog(topics []domain.Topic) *Dialog {
	return newDialog(topics)
}

func (d *Dialog) topicNames() []string {
	names := make([]string, len(d.topics))
	for i, t := range d.topics {
		names[i] = t.Name
	}
	return names
}

func (d *Dialog) subtopicNamesLocked() []string {
	subs := d.topics[d.topicIdx].Subtopics
	names := make([]string, len(subs))
	for i, st := range subs {
		names[i] = st.Name
	}
	return names
}

// chooseTopic stores the chosen topic and returns its subtopic names.
// Wrong phase or an out-of-range index leave the dialog untouched.
func (d *Dialog) chooseTopic(index int) ([]string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != phaseTopic || index < 0 || index >= len(d.topics) {
		return nil, "", domain.ErrInvalidChoice
	}
	d.topicIdx = index
	d.phase = phaseSubtopic
	return d.subtopicNamesLocked(), d.topics[index].Name, nil
}

// chooseSubtopic stores the chosen subtopic and advances to count entry.
func (d *Dialog) chooseSubtopic(index int) (domain.Subtopic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != phaseSubtopic {
		return domain.Subtopic{}, domain.ErrInvalidChoice
	}
	subs := d.topics[d.topicIdx].Subtopics
	if index < 0 || index >= len(subs) {
		return domain.Subtopic{}, domain.ErrInvalidChoice
	}
	d.subIdx = index
	d.phase = phaseCount
	return subs[index], nil
}

// back moves one phase backward, discarding only the most specific choice.
// At the topic listing it is a no-op.
func (d *Dialog) back() (items []string, topicName string, atTopics bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.phase {
	case phaseCount:
		d.phase = phaseSubtopic
		d.subIdx = -1
		return d.subtopicNamesLocked(), d.topics[d.topicIdx].Name, false
	case phaseSubtopic:
		d.phase = phaseTopic
		d.topicIdx = -1
		return d.topicNames(), "", true
	default:
		return d.topicNames(), "", true
	}
}

// selection returns the chosen subtopic once the dialog awaits a count.
func (d *Dialog) selection() (domain.Subtopic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != phaseCount {
		return domain.Subtopic{}, domain.ErrInvalidCount
	}
	return d.topics[d.topicIdx].Subtopics[d.subIdx], nil
}
