package chat

import (
	"fmt"
	"time"
)

const modelCallTimeout = 60 * time.Second

// Assistant defines the interface for conversational query backends
type Assistant interface {
	// Answer replies to a user question, grounded in the supplied bill
	// context JSON ("{}" when no bill is present)
	Answer(contextJSON string, userQuery string) (string, error)
	// Close closes the assistant and releases resources
	Close() error
}

// groundingInstruction builds the system instruction that pins the model
// to the extracted bill data for bill questions while still allowing
// ordinary conversation.
func groundingInstruction(contextJSON string) string {
	return fmt.Sprintf(
		"You are an AI Bill Analyst. Your main goal is to answer questions about the provided JSON bill data, "+
			"and also engage in friendly chit-chat. When asked about the bill, use *only* the data below. "+
			"If the question is conversational, respond normally."+
			"\n\n--- BILL DATA START ---\n%s\n--- BILL DATA END ---\n",
		contextJSON,
	)
}
