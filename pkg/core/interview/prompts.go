package interview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/viva-labs/viva/pkg/core/bank"
)

// Canned replies used whenever a generation call fails. Spoken interactions
// always receive some utterance, preserving conversational continuity over
// correctness.
const (
	fallbackFirstQuestion = "Let's start with a fundamental question: Can you tell me about your experience with programming and what languages you're most comfortable with?"
	fallbackNextQuestion  = "Let's move on to another topic. Can you explain a challenging problem you've solved recently?"
	fallbackFollowUp      = "Can you elaborate on that a bit more?"
	fallbackGuidance      = "That's a good question. Let me continue with the interview and we can discuss that further at the end. Let's proceed with the next question."
	fallbackConfusion     = "That's okay, take your time. Try to think about it step by step. What's the first thing that comes to mind?"
	fallbackProcessing    = "I apologize, I had trouble processing your response. Could you please repeat that?"
)

func fallbackClarification(currentQuestion string) string {
	return fmt.Sprintf("Let me rephrase that question: %s. Take your time to think about it.", currentQuestion)
}

func buildIntentPrompt(transcript string, conv *Context) string {
	current := conv.CurrentQuestion
	if current == "" {
		current = "None"
	}
	var sb strings.Builder
	sb.WriteString("Analyze this user speech in a technical interview context:\n\n")
	sb.WriteString("Current State:\n")
	fmt.Fprintf(&sb, "- Current Question: %q\n", current)
	fmt.Fprintf(&sb, "- Awaiting Answer: %t\n", conv.AwaitingAnswer)
	fmt.Fprintf(&sb, "- Follow-ups Asked: %d\n\n", conv.FollowUpCount)
	fmt.Fprintf(&sb, "User Said: %q\n\n", transcript)
	sb.WriteString("Determine the user's intent. Choose ONE:\n")
	sb.WriteString("- \"answering_question\": User is providing an answer to the current question\n")
	sb.WriteString("- \"asking_question\": User is asking the interviewer a question\n")
	sb.WriteString("- \"seeking_clarification\": User wants the current question clarified or repeated\n")
	sb.WriteString("- \"confused_or_stuck\": User is confused, stuck, or needs help\n\n")
	sb.WriteString("Consider:\n")
	sb.WriteString("- Question words (what, how, why, can you) suggest \"asking_question\"\n")
	sb.WriteString("- Statements about concepts suggest \"answering_question\"\n")
	sb.WriteString("- \"I don't understand\" or \"can you repeat\" suggest \"seeking_clarification\"\n")
	sb.WriteString("- \"I'm not sure\" or \"I don't know\" suggest \"confused_or_stuck\"\n\n")
	sb.WriteString("Return ONLY the intent category.")
	return sb.String()
}

func buildEvaluationPrompt(question, expectedAnswer, answer, topic string, difficulty int) string {
	var sb strings.Builder
	sb.WriteString("You are an expert technical interviewer evaluating candidate responses.\n")
	sb.WriteString("Provide fair, constructive, and detailed feedback.\n\n")
	sb.WriteString("Evaluation Criteria: accuracy, completeness, clarity, depth, examples.\n")
	sb.WriteString("Scoring: 9-10 excellent, 7-8 good, 5-6 average, 3-4 below average, 1-2 poor.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	if expectedAnswer != "" {
		fmt.Fprintf(&sb, "Expected Answer: %s\n\n", expectedAnswer)
	}
	fmt.Fprintf(&sb, "Candidate's Answer: %s\n\n", answer)
	fmt.Fprintf(&sb, "Question Topic: %s\n", topic)
	fmt.Fprintf(&sb, "Question Difficulty: %d/5\n\n", difficulty)
	sb.WriteString("Provide your evaluation in the following JSON format:\n")
	sb.WriteString(`{
  "score": <integer from 1-10>,
  "feedback": "<detailed feedback on accuracy and completeness>",
  "suggestions": "<specific improvement suggestions>",
  "follow_up": "<optional follow-up question, or null>",
  "strengths": ["<strength1>", "<strength2>"],
  "weaknesses": ["<weakness1>", "<weakness2>"]
}`)
	sb.WriteString("\n\nEnsure your response is valid JSON.")
	return sb.String()
}

func buildGuidancePrompt(userQuestion string, conv *Context, remaining time.Duration) string {
	current := conv.CurrentQuestion
	if current == "" {
		current = "Starting interview"
	}
	var sb strings.Builder
	sb.WriteString("You are an experienced technical interviewer. The candidate asked:\n")
	fmt.Fprintf(&sb, "%q\n\n", userQuestion)
	sb.WriteString("Interview Context:\n")
	fmt.Fprintf(&sb, "- Current Question: %s\n", current)
	fmt.Fprintf(&sb, "- Topics: %v\n", conv.Topics())
	fmt.Fprintf(&sb, "- Time Remaining: %.1f minutes\n\n", remaining.Minutes())
	sb.WriteString("Provide a helpful, professional response that answers their question\n")
	sb.WriteString("appropriately without giving away answers, maintains a professional\n")
	sb.WriteString("interview tone, and smoothly transitions back to the interview.\n")
	sb.WriteString("Keep the response concise (2-3 sentences).")
	return sb.String()
}

func buildClarificationPrompt(transcript string, conv *Context) string {
	var sb strings.Builder
	sb.WriteString("The candidate asked for clarification about this question:\n")
	fmt.Fprintf(&sb, "%q\n\n", conv.CurrentQuestion)
	fmt.Fprintf(&sb, "They said: %q\n\n", transcript)
	sb.WriteString("Provide a clear, helpful clarification that rephrases the question,\n")
	sb.WriteString("gives helpful context without revealing the answer, and encourages them\n")
	sb.WriteString("to attempt an answer. Keep it concise and supportive.")
	return sb.String()
}

func buildConfusionPrompt(transcript string, conv *Context) string {
	current := conv.CurrentQuestion
	if current == "" {
		current = "None"
	}
	var sb strings.Builder
	sb.WriteString("The candidate seems confused or stuck. They said:\n")
	fmt.Fprintf(&sb, "%q\n\n", transcript)
	fmt.Fprintf(&sb, "Current question: %q\n\n", current)
	sb.WriteString("Provide supportive guidance that acknowledges their difficulty, offers\n")
	sb.WriteString("a helpful hint or different approach, and encourages them without\n")
	sb.WriteString("giving away the answer. Be empathetic and constructive.")
	return sb.String()
}

func buildDecisionPrompt(eval *Evaluation, conv *Context, remaining time.Duration) string {
	var sb strings.Builder
	sb.WriteString("Decide whether to ask a follow-up question or move to a new question.\n\n")
	sb.WriteString("Answer Evaluation:\n")
	fmt.Fprintf(&sb, "- Score: %d/10\n", eval.Score)
	fmt.Fprintf(&sb, "- Feedback: %s\n\n", eval.Feedback)
	sb.WriteString("Context:\n")
	fmt.Fprintf(&sb, "- Follow-ups asked so far: %d\n", conv.FollowUpCount)
	fmt.Fprintf(&sb, "- Time remaining: %.1f minutes\n", remaining.Minutes())
	fmt.Fprintf(&sb, "- Questions asked: %d\n\n", conv.QuestionsAsked)
	sb.WriteString("Guidelines:\n")
	sb.WriteString("- Follow up if the answer shows understanding but could go deeper\n")
	sb.WriteString("- Follow up if the answer is incomplete but promising\n")
	sb.WriteString("- Move on if the answer is complete or the user seems stuck\n")
	sb.WriteString("- Consider time remaining\n\n")
	sb.WriteString("Return ONLY: \"follow_up\" or \"new_question\"")
	return sb.String()
}

func buildFollowUpPrompt(originalAnswer string, eval *Evaluation, conv *Context) string {
	var sb strings.Builder
	sb.WriteString("Generate a natural follow-up question based on the candidate's answer.\n\n")
	fmt.Fprintf(&sb, "Original Question: %q\n", conv.CurrentQuestion)
	fmt.Fprintf(&sb, "Candidate's Answer: %q\n", originalAnswer)
	fmt.Fprintf(&sb, "Evaluation: %s\n\n", eval.Feedback)
	sb.WriteString("Create a follow-up that explores deeper into their answer, tests\n")
	sb.WriteString("practical application, feels conversational, and can be answered in\n")
	sb.WriteString("2-3 minutes.\n\n")
	sb.WriteString("Return just the follow-up question text.")
	return sb.String()
}

func buildFirstQuestionPrompt(conv *Context, examples []bank.Question) string {
	var sb strings.Builder
	sb.WriteString("Generate the opening question for a technical interview.\n\n")
	sb.WriteString("Context:\n")
	fmt.Fprintf(&sb, "- Topics: %v\n", conv.Topics())
	fmt.Fprintf(&sb, "- Interview Duration: %.0f minutes\n", conv.Duration.Minutes())
	sb.WriteString("- This is the first question\n\n")
	writeExampleQuestions(&sb, examples, 3)
	sb.WriteString("Create a question that is appropriate for opening an interview, covers\n")
	sb.WriteString("one of the selected topics, is medium difficulty, can be answered in\n")
	sb.WriteString("3-5 minutes, and sets a welcoming tone.\n\n")
	sb.WriteString("Return just the question text.")
	return sb.String()
}

func buildNextQuestionPrompt(conv *Context, examples []bank.Question, remaining time.Duration) string {
	var sb strings.Builder
	sb.WriteString("Generate the next question for this technical interview.\n\n")
	sb.WriteString("Interview Context:\n")
	sb.WriteString(conv.Summary(remaining))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Topics to Cover: %v\n\n", conv.Topics())
	writeExampleQuestions(&sb, examples, 5)
	sb.WriteString("Create a question that covers new ground not yet explored, is\n")
	sb.WriteString("appropriate for the remaining time, builds naturally on the\n")
	sb.WriteString("conversation, and tests different aspects of their knowledge.\n\n")
	sb.WriteString("Return just the question text.")
	return sb.String()
}

func writeExampleQuestions(sb *strings.Builder, examples []bank.Question, max int) {
	if len(examples) == 0 {
		return
	}
	if len(examples) > max {
		examples = examples[:max]
	}
	data, err := json.MarshalIndent(examples, "", "  ")
	if err != nil {
		return
	}
	sb.WriteString("Question Bank Examples (for style reference):\n")
	sb.Write(data)
	sb.WriteString("\n\n")
}
