package bot

import "strings"

// splitCommand separates the leading /command word from its argument
// text.
func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return cmd, rest
}

// normalizeSlashCommand lowercases a command and strips the @botname
// suffix Telegram appends in group chats.
func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(strings.ToLower(cmd))
	if !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd
}
