package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hhkuy/sums-qz/internal/app"
	"github.com/hhkuy/sums-qz/internal/domain"
)

// Handler bridges websocket conversations to the quiz service. Each
// connection names its conversation and participant via query parameters;
// inbound frames map one-to-one onto the dialog and session operations.
type Handler struct {
	service  *app.QuizService
	hub      *Hub
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

func NewHandler(service *app.QuizService, hub *Hub, log *logrus.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type countPayload struct {
	Value string `json:"value"`
}

type answerPayload struct {
	QuestionID    string `json:"questionId"`
	OptionIndices []int  `json:"optionIndices"`
}

// ServeWS upgrades the request and runs the conversation loop.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	participantID := r.URL.Query().Get("participantId")
	if conversationID == "" || participantID == "" {
		http.Error(w, "missing conversationId or participantId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := newClient(participantID)
	h.hub.add(conversationID, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			listing, err := h.service.BeginSelection(ctx, conversationID)
			h.reply(c, listing, err)
		case "topic":
			var p indexPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				c.enqueue(errFrame("invalid payload"))
				continue
			}
			listing, err := h.service.ChooseTopic(ctx, conversationID, p.Index)
			h.reply(c, listing, err)
		case "subtopic":
			var p indexPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				c.enqueue(errFrame("invalid payload"))
				continue
			}
			listing, err := h.service.ChooseSubtopic(ctx, conversationID, p.Index)
			h.reply(c, listing, err)
		case "back":
			listing, err := h.service.GoBack(ctx, conversationID)
			h.reply(c, listing, err)
		case "count":
			var p countPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				c.enqueue(errFrame("invalid payload"))
				continue
			}
			if err := h.service.SubmitCount(ctx, conversationID, participantID, p.Value); err != nil {
				c.enqueue(errFrame(userMessage(err)))
			}
		case "answer":
			var p answerPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.HandleAnswer(ctx, domain.AnswerEvent{
				ConversationID: conversationID,
				ParticipantID:  participantID,
				QuestionID:     p.QuestionID,
				OptionIndices:  p.OptionIndices,
			})
		case "cancel":
			h.service.Cancel(ctx, conversationID, participantID)
			c.enqueue(outboundMessage[textPayload]{Type: "message", Payload: textPayload{Text: "Cancelled."}})
		default:
			c.enqueue(errFrame("unsupported message type"))
		}
	}

	h.hub.remove(conversationID, c)
	close(c.send)
	<-writerDone
}

func (h *Handler) reply(c *client, listing app.Listing, err error) {
	if err != nil {
		c.enqueue(errFrame(userMessage(err)))
		return
	}
	c.enqueue(outboundMessage[app.Listing]{Type: "prompt", Payload: listing})
}

func errFrame(msg string) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}}
}

// userMessage maps domain errors to re-prompt texts shown in the chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidChoice):
		return "Invalid choice, pick one of the listed numbers."
	case errors.Is(err, domain.ErrInvalidCount):
		return "Please enter a positive whole number."
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return "The question catalog is unreachable right now, try again later."
	case errors.Is(err, domain.ErrEmptyQuestionSet), errors.Is(err, domain.ErrNoValidQuestions):
		return "That question set has no usable questions."
	case errors.Is(err, domain.ErrNoDialog):
		return "Send start to begin."
	case errors.Is(err, domain.ErrDispatchFailed):
		return "Could not send the quiz questions, try again."
	default:
		return "Something went wrong."
	}
}
