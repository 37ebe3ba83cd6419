// Package persona holds the bot's identity: its name, the welcome and
// help texts, and the system prompt supplied to the model on every
// call (never persisted as a conversation turn).
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	Name         string `yaml:"name"`
	Greeting     string `yaml:"greeting"`
	Help         string `yaml:"help"`
	SystemPrompt string `yaml:"system_prompt"`
}

const defaultSystemPrompt = `You are Aria, a sharp and dependable personal AI assistant.

Your core traits:
- Professional yet warm — you treat every user like a trusted colleague.
- Concise by default — give crisp, actionable answers unless depth is requested.
- Proactive — when a task is ambiguous, ask one clarifying question rather than guessing.
- Honest — if you don't know something, say so; never fabricate facts.

Your capabilities:
- Task & project management: help break down goals, prioritise work, draft plans.
- Research & summarisation: condense long content into clear takeaways.
- Writing & editing: draft emails, reports, messages, and improve existing text.
- Brainstorming: generate creative ideas and explore options.
- General Q&A: answer factual, technical, or practical questions accurately.

Formatting rules:
- Use Markdown only when it genuinely aids readability (lists, code blocks, bold key terms).
- Keep responses under ~200 words unless the user explicitly asks for more detail.
- Never pad responses with filler phrases like "Certainly!" or "Great question!".

You remember the conversation history within this session and use it for context.
Always stay on-topic and focused on helping the user accomplish their goals.`

const defaultGreeting = `👋 Hi %s! I'm *Aria*, your personal AI assistant.

Here's what I can do:
💬 Chat & answer questions
🖼️ Analyse photos you send me
🎙️ Transcribe & respond to voice messages
📄 Read & analyse PDF documents
🔍 Search the web with /search
🔗 Summarise web pages — just send a URL

Send me a message to get started, or use /help for all commands.`

const defaultHelp = `*Available commands*

/start  — introduce yourself
/help   — show this message
/reset  — clear our conversation history
/search — search the web

*I also respond to:*
📷 Photos — send an image for analysis
🎙️ Voice — send a voice message for transcription
📄 PDFs — send a document for analysis
🔗 URLs — send a link and I'll summarise the page

Or just type anything and I'll respond!`

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Name:         "Aria",
		Greeting:     defaultGreeting,
		Help:         defaultHelp,
		SystemPrompt: defaultSystemPrompt,
	}
}

// Load reads a profile from a YAML file. Fields left empty in the file
// keep their built-in defaults, so a profile can override just the
// system prompt.
func Load(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read persona file: %w", err)
	}

	var loaded Profile
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return Profile{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	p := Default()
	if loaded.Name != "" {
		p.Name = loaded.Name
	}
	if loaded.Greeting != "" {
		p.Greeting = loaded.Greeting
	}
	if loaded.Help != "" {
		p.Help = loaded.Help
	}
	if loaded.SystemPrompt != "" {
		p.SystemPrompt = loaded.SystemPrompt
	}
	return p, nil
}

// GreetingFor renders the greeting with the user's first name when the
// template expects one.
func (p Profile) GreetingFor(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	if !hasNameSlot(p.Greeting) {
		return p.Greeting
	}
	return fmt.Sprintf(p.Greeting, firstName)
}

// hasNameSlot reports whether the greeting template has a %s slot for
// the user's name. Custom profiles may omit it.
func hasNameSlot(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' {
			if s[i+1] == 's' {
				return true
			}
			i++
		}
	}
	return false
}
