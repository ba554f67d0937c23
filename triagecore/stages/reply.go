package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/sonukumar047/email-assistant/triagecore/config"
	"github.com/sonukumar047/email-assistant/triagecore/llm"
	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/state"
	"github.com/sonukumar047/email-assistant/triagecore/workflow"
)

// toneInstructions maps intent and tone style to the register instruction
// embedded in the reply prompt.
var toneInstructions = map[state.Intent]map[state.Tone]string{
	state.IntentComplaint: {
		state.ToneProfessional: "empathetic and solution-focused. Acknowledge the issue professionally.",
		state.ToneFriendly:     "warm and understanding. Show genuine care about their problem.",
		state.ToneFormal:       "respectful and apologetic. Maintain formal business language.",
		state.ToneCasual:       "relaxed but caring. Address the issue conversationally.",
	},
	state.IntentRequest: {
		state.ToneProfessional: "helpful and action-oriented. Clearly explain next steps.",
		state.ToneFriendly:     "enthusiastic and supportive. Make them feel valued.",
		state.ToneFormal:       "precise and informative. Use formal business protocol.",
		state.ToneCasual:       "easy-going and helpful. Keep it simple and clear.",
	},
	state.IntentFeedback: {
		state.ToneProfessional: "appreciative and thoughtful. Thank them for their input.",
		state.ToneFriendly:     "warm and grateful. Express genuine excitement for their feedback.",
		state.ToneFormal:       "respectful and acknowledging. Use formal appreciation language.",
		state.ToneCasual:       "enthusiastic and thankful. Keep it light and appreciative.",
	},
	state.IntentInquiry: {
		state.ToneProfessional: "informative and clear. Provide comprehensive information.",
		state.ToneFriendly:     "helpful and engaging. Make the explanation easy to understand.",
		state.ToneFormal:       "precise and detailed. Use formal informational language.",
		state.ToneCasual:       "straightforward and helpful. Explain simply.",
	},
}

const defaultToneInstruction = "professional and courteous"

// NewReplyStage builds the reply-drafting stage. It requires both the
// summary and the memory context, enforcing the fan-in barrier after the
// parallel tier.
func NewReplyStage(cfg *config.Config, gen llm.TextGenerator, logger logging.Logger) workflow.Stage {
	log := logger.Bind("stage", StageGenerateReply)
	params := llm.Params{Model: cfg.Model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	return workflow.Stage{
		Name:     StageGenerateReply,
		Requires: []string{StageSummarize, StageMemory},
		Run: func(ctx context.Context, snap *state.EmailState) (workflow.Mutation, error) {
			summary := ""
			if snap.Summary != nil {
				summary = *snap.Summary
			}
			memoryContext := ""
			if snap.MemoryContext != nil {
				memoryContext = *snap.MemoryContext
			}

			tone := defaultToneInstruction
			if byTone, ok := toneInstructions[snap.Intent]; ok {
				if instruction, ok := byTone[snap.Tone]; ok {
					tone = instruction
				}
			}

			sentimentAdjustment := ""
			switch snap.Sentiment {
			case state.SentimentNegative:
				sentimentAdjustment = "\nThe customer sounds frustrated. Use extra empathy."
			case state.SentimentPositive:
				sentimentAdjustment = "\nThe customer is positive. Match their energy."
			}

			senderName := SenderName(snap.From)

			system := fmt.Sprintf(`You are a customer support agent writing email replies.

Tone: %s
Tone Style: %s
%s

Rules:
1. Address the customer by name (%s)
2. Reference their specific issue or question
3. Be concise but complete (3-5 sentences)
4. Use conversation history to provide context-aware responses
5. If this is a repeat issue, acknowledge it explicitly
6. End with an appropriate closing based on tone style
7. Match the tone to both the intent type and style preference`,
				tone, snap.Tone, sentimentAdjustment, senderName)

			user := fmt.Sprintf(`Generate a reply for this email:

Intent: %s
Sentiment: %s
Summary: %s

Conversation History:
%s

Original Subject: %s

Format your response as:
Subject: [your subject line]
Body: [your email body]`,
				snap.Intent, snap.Sentiment, summary, memoryContext, snap.Subject)

			text, err := gen.Generate(ctx, llm.Request{System: system, User: user}, params)
			if err != nil {
				return nil, fmt.Errorf("reply generation: %w", err)
			}

			replySubject, replyBody := ParseReply(text, snap.Subject)

			log.Info("reply_generated",
				"run_id", snap.RunID,
				"intent", string(snap.Intent),
				"tone_style", string(snap.Tone),
			)

			return func(st *state.EmailState) {
				st.ReplySubject = state.StrPtr(replySubject)
				st.ReplyBody = state.StrPtr(replyBody)
			}, nil
		},
	}
}

// ParseReply extracts the subject and body from a drafted reply. The draft
// is expected to start with a "Subject:" line followed by a "Body:" section.
// A draft with no "Subject:" marker falls back to "Re: {original}" (without
// doubling an existing "Re:" prefix) with the whole draft as the body.
// Parsing never fails; malformed drafts degrade to the fallback.
func ParseReply(content, originalSubject string) (subject, body string) {
	content = strings.TrimSpace(content)

	if !strings.Contains(content, "Subject:") {
		return fallbackSubject(originalSubject), content
	}

	parts := strings.SplitN(content, "\n", 2)
	subject = strings.TrimSpace(strings.Replace(parts[0], "Subject:", "", 1))

	if len(parts) == 1 {
		return subject, content
	}

	rest := parts[1]
	if idx := strings.Index(rest, "Body:"); idx >= 0 {
		body = strings.TrimSpace(rest[idx+len("Body:"):])
	} else {
		body = strings.TrimSpace(rest)
	}
	return subject, body
}

// SenderName derives a display name from an address: the local part with
// the first letter upper-cased.
func SenderName(address string) string {
	local := address
	if idx := strings.Index(address, "@"); idx >= 0 {
		local = address[:idx]
	}
	if local == "" {
		return local
	}
	return strings.ToUpper(local[:1]) + local[1:]
}

func fallbackSubject(originalSubject string) string {
	if strings.HasPrefix(originalSubject, "Re:") {
		return originalSubject
	}
	return "Re: " + originalSubject
}
