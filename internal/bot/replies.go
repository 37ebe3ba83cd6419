package bot

// Fixed user-facing replies. Collaborator failures map onto these;
// raw upstream error detail never reaches the chat.
const (
	replyDenied = "⛔ Access denied — you are not authorized to use this bot."

	replyModelError = "⚠️ Sorry, I ran into an issue reaching my AI backend. " +
		"Please try again in a moment."
	replyGenericError = "⚠️ Something went wrong. Please try again."

	replyPhotoError = "⚠️ Sorry, I couldn't analyse that image. Please try again."
	replyVoiceError = "⚠️ Sorry, I couldn't process that voice message. Please try again."

	replyPDFNoText = "⚠️ I couldn't extract any text from this PDF. " +
		"It might be image-based or encrypted."
	replyPDFError = "⚠️ I extracted the text but failed to analyse it. Please try again."
	replyNotPDF   = "⚠️ I can only analyse PDF documents right now."

	replySearchUnavailable = "⚠️ Web search is unavailable right now. Please try again later."
	replySearchError       = "⚠️ Got search results but failed to summarise them. Try again."
	replySearchUsage       = "Usage: `/search your query here`"

	replyReset = "🗑️ Done — I've cleared our conversation history. Fresh start!"
)
