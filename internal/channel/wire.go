package channel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

// MessageType names a message on the marking channel.
type MessageType string

// Outbound requests
const (
	MsgMarkAnswer   MessageType = "markAnswer"
	MsgMarkAnswerAO MessageType = "markAnswerAO"
)

// Inbound events
const (
	MsgAnnotations   MessageType = "annotations"
	MsgMarkingTable  MessageType = "marking_table"
	MsgFinalResponse MessageType = "final_response"
	MsgError         MessageType = "error_message"
)

// Message is the envelope for everything sent over the channel.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarkRequest is the payload of a markAnswer / markAnswerAO request.
type MarkRequest struct {
	Answer          string `json:"answer"`
	Canvas          string `json:"canvas"`
	CanvasLatex     string `json:"canvasLatex"`
	CanvasStrokes   string `json:"canvasStrokes"`
	Question        string `json:"question"`
	LessonID        string `json:"lessonId"`
	MarkScheme      string `json:"markscheme"`
	MarkMax         int    `json:"markmax"`
	ID              string `json:"id"`
	SpecificationID string `json:"specification_id"`
}

// FinalResponse is the payload of a final_response event.
type FinalResponse struct {
	QuestionID      string             `json:"question_id"`
	MarkingTable    string             `json:"marking_table"`
	Mark            Mark               `json:"mark"`
	Annotations     models.Annotations `json:"annotations"`
	WeakSentences   []string           `json:"weak_sentences"`
	StrongSentences []string           `json:"strong_sentences"`
	AOAnalysis      json.RawMessage    `json:"ao_analysis,omitempty"`
}

// Mark accepts a number or a numeric string.
type Mark float64

func (m *Mark) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid mark %q: %w", s, err)
	}
	*m = Mark(v)
	return nil
}

type annotationsPayload struct {
	QuestionID  string             `json:"question_id"`
	Annotations models.Annotations `json:"annotations"`
}

type markingTablePayload struct {
	QuestionID   string `json:"question_id"`
	MarkingTable string `json:"marking_table"`
}

type errorPayload struct {
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// EventKind identifies a decoded inbound event.
type EventKind int

const (
	EventAnnotations EventKind = iota + 1
	EventMarkingTable
	EventFinal
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventAnnotations:
		return "annotations"
	case EventMarkingTable:
		return "marking_table"
	case EventFinal:
		return "final_response"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one inbound channel event. QuestionID is empty when the remote
// side did not say which question it belongs to.
type Event struct {
	Kind         EventKind
	QuestionID   string
	Annotations  models.Annotations
	MarkingTable string
	Final        *FinalResponse
	Message      string
}

// DecodeEvent turns an inbound envelope into an Event.
func DecodeEvent(msg Message) (Event, error) {
	switch msg.Type {
	case MsgAnnotations:
		var p annotationsPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		return Event{Kind: EventAnnotations, QuestionID: p.QuestionID, Annotations: p.Annotations}, nil

	case MsgMarkingTable:
		// either a bare string or {question_id, marking_table}
		var table string
		if err := json.Unmarshal(msg.Payload, &table); err == nil {
			return Event{Kind: EventMarkingTable, MarkingTable: table}, nil
		}
		var p markingTablePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		return Event{Kind: EventMarkingTable, QuestionID: p.QuestionID, MarkingTable: p.MarkingTable}, nil

	case MsgFinalResponse:
		var p FinalResponse
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		return Event{Kind: EventFinal, QuestionID: p.QuestionID, Final: &p}, nil

	case MsgError:
		var p errorPayload
		if len(msg.Payload) > 0 {
			// an empty or non-object payload still counts as an error event
			_ = json.Unmarshal(msg.Payload, &p)
		}
		if p.Message == "" {
			p.Message = "the marking service reported an error"
		}
		return Event{Kind: EventError, QuestionID: p.QuestionID, Message: p.Message}, nil
	}
	return Event{}, fmt.Errorf("unknown message type %q", msg.Type)
}
