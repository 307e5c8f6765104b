package chat

// SenderUser marks turns typed by the end user; any other sender is treated as the assistant.
const SenderUser = "user"

// Turn is one entry of the client-held conversation history.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Request is the body accepted by POST /chat.
// The caller resends the full history on every call; nothing is stored server-side.
type Request struct {
	Message string  `json:"message"`
	History []Turn  `json:"history"`
	UserIP  *string `json:"user_ip,omitempty"`
}

// IP returns the caller supplied address or an empty string.
func (r Request) IP() string {
	if r.UserIP == nil {
		return ""
	}
	return *r.UserIP
}

// Response carries the assistant reply back to the client.
type Response struct {
	Response string `json:"response"`
}
