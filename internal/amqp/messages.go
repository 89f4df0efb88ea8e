package amqp

import (
	"encoding/json"
	"time"
)

// ScoreRequestMessage asks the score worker to assess one member. The loan
// workflow publishes only identifiers and the requested amount; the worker
// reads everything else from the data store.
type ScoreRequestMessage struct {
	RequestID      string    `json:"requestId"`
	MemberID       int64     `json:"memberId"`
	RequestedCents int64     `json:"requestedCents"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewScoreRequestMessage(requestID string, memberID, requestedCents int64) *ScoreRequestMessage {
	return &ScoreRequestMessage{
		RequestID:      requestID,
		MemberID:       memberID,
		RequestedCents: requestedCents,
		Timestamp:      time.Now(),
	}
}

func (m *ScoreRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ScoreRequestMessageFromJSON(data []byte) (*ScoreRequestMessage, error) {
	var msg ScoreRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ScoreResultMessage carries the serialized recommendation back to the loan
// workflow, correlated by the request id.
type ScoreResultMessage struct {
	RequestID      string          `json:"requestId"`
	MemberID       int64           `json:"memberId"`
	Recommendation json.RawMessage `json:"recommendation"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewScoreResultMessage(requestID string, memberID int64, recommendation any) (*ScoreResultMessage, error) {
	body, err := json.Marshal(recommendation)
	if err != nil {
		return nil, err
	}
	return &ScoreResultMessage{
		RequestID:      requestID,
		MemberID:       memberID,
		Recommendation: body,
		Timestamp:      time.Now(),
	}, nil
}

func (m *ScoreResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ModelTrainedMessage announces a completed training run. Serving processes
// still load whatever artifact is on disk at startup; this message exists
// for operators verifying a rollout.
type ModelTrainedMessage struct {
	Version       string    `json:"version"`
	Samples       int       `json:"samples"`
	LowConfidence bool      `json:"lowConfidence"`
	TrainedAt     time.Time `json:"trainedAt"`
}

func (m *ModelTrainedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ModelTrainedMessageFromJSON(data []byte) (*ModelTrainedMessage, error) {
	var msg ModelTrainedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
