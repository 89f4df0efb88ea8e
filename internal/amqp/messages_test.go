package amqp

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestScoreRequestMessageRoundTrip(t *testing.T) {
	msg := NewScoreRequestMessage("req-123", 42, 5_000_000)
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	decoded, err := ScoreRequestMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if decoded.RequestID != "req-123" || decoded.MemberID != 42 || decoded.RequestedCents != 5_000_000 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestScoreRequestMessageFromJSONMalformed(t *testing.T) {
	if _, err := ScoreRequestMessageFromJSON([]byte("{broken")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestScoreResultMessageEmbedsRecommendation(t *testing.T) {
	recommendation := map[string]any{
		"recommendation": "approve",
		"creditScore":    82,
	}
	msg, err := NewScoreResultMessage("req-123", 42, recommendation)
	if err != nil {
		t.Fatalf("NewScoreResultMessage: %v", err)
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(string(data), `"creditScore":82`) {
		t.Errorf("recommendation not embedded: %s", data)
	}

	var decoded ScoreResultMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var inner map[string]any
	if err := json.Unmarshal(decoded.Recommendation, &inner); err != nil {
		t.Fatalf("inner Unmarshal: %v", err)
	}
	if inner["recommendation"] != "approve" {
		t.Errorf("inner recommendation = %v", inner["recommendation"])
	}
}

func TestScoreResultMessageRejectsUnmarshalable(t *testing.T) {
	if _, err := NewScoreResultMessage("req-123", 42, func() {}); err == nil {
		t.Error("expected error for unmarshalable recommendation")
	}
}

func TestModelTrainedMessageJSON(t *testing.T) {
	msg := &ModelTrainedMessage{
		Version:       "v1",
		Samples:       37,
		LowConfidence: true,
		TrainedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	for _, want := range []string{`"version":"v1"`, `"samples":37`, `"lowConfidence":true`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("payload missing %s: %s", want, data)
		}
	}
}
