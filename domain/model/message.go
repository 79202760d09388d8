package model

// Message is one inbound chat message, independent of the chat platform.
type Message struct {
	ChatID string
	Text   string
	// Command は先頭の "/" を除いたコマンド名。通常のメッセージでは空
	Command string
	Args    string
}

func (m Message) IsCommand() bool {
	return m.Command != ""
}
