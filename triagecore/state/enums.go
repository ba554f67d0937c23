// Package state provides the shared state record for a triage run and its enums.
//
// Optional fields are modeled explicitly: enum-typed fields use the empty
// string as "unset", everything else optional is a pointer. A stage sets a
// field exactly once; the workflow engine performs all merges.
package state

import (
	"fmt"
	"strings"
)

// Intent represents the classified purpose of an inbound email.
type Intent string

const (
	// IntentComplaint indicates the customer is unhappy or reporting an issue.
	IntentComplaint Intent = "complaint"
	// IntentRequest indicates the customer needs help or wants something done.
	IntentRequest Intent = "request"
	// IntentFeedback indicates the customer is sharing opinions or suggestions.
	IntentFeedback Intent = "feedback"
	// IntentInquiry indicates the customer is asking for information.
	IntentInquiry Intent = "inquiry"
)

// ValidIntents is the closed intent vocabulary. Classification results outside
// this set are coerced to IntentInquiry with lowered confidence.
var ValidIntents = []Intent{IntentComplaint, IntentRequest, IntentFeedback, IntentInquiry}

// IntentFromString parses an intent string.
func IntentFromString(value string) (Intent, error) {
	normalized := Intent(strings.ToLower(strings.TrimSpace(value)))
	for _, intent := range ValidIntents {
		if normalized == intent {
			return intent, nil
		}
	}
	return "", fmt.Errorf("invalid intent '%s'. Must be one of: complaint, request, feedback, inquiry", value)
}

// Sentiment represents the detected emotional tone of an email.
type Sentiment string

const (
	// SentimentPositive indicates a happy, satisfied, grateful tone.
	SentimentPositive Sentiment = "positive"
	// SentimentNeutral indicates a factual, informative tone.
	SentimentNeutral Sentiment = "neutral"
	// SentimentNegative indicates a frustrated, angry, disappointed tone.
	SentimentNegative Sentiment = "negative"
)

// SentimentFromString parses a sentiment string.
func SentimentFromString(value string) (Sentiment, error) {
	normalized := Sentiment(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid sentiment '%s'. Must be one of: positive, neutral, negative", value)
	}
}

// Tone represents the stylistic register used for generated replies.
// It does not affect classification or escalation logic.
type Tone string

const (
	// ToneProfessional is the default business register.
	ToneProfessional Tone = "professional"
	// ToneFriendly is warm and personable.
	ToneFriendly Tone = "friendly"
	// ToneFormal is strict business protocol.
	ToneFormal Tone = "formal"
	// ToneCasual is relaxed and conversational.
	ToneCasual Tone = "casual"
)

// ToneFromString parses a tone string.
func ToneFromString(value string) (Tone, error) {
	normalized := Tone(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ToneProfessional, ToneFriendly, ToneFormal, ToneCasual:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid tone '%s'. Must be one of: professional, friendly, formal, casual", value)
	}
}
