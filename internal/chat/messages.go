package chat

// Fixed texts shown to the user in place of, or next to, a model reply.
const (
	LimitMessage = "You've reached the limit of free messages for guests. " +
		"Please sign up or sign in to keep talking with me. Your conversations will be saved " +
		"so you can pick up right where we left off."

	UpsellSuffix = "\n\n---\n\nThis was your last free message as a guest. " +
		"Sign up to continue our conversation and keep your history."

	ApologyMessage = "I apologize, but I encountered an error. Please try again."
)
