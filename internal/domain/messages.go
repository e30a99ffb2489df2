package domain

// WebSocket message types from client.
const (
	MsgTypeSendMessage    = "sendMessage"
	MsgTypeAdminReply     = "adminReply"
	MsgTypeGetHistory     = "getHistory"
	MsgTypeGetAllMessages = "getAllMessages"
	MsgTypePing           = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeMessage     = "message"
	MsgTypeNewMessage  = "newMessage"
	MsgTypeHistory     = "history"
	MsgTypeAllMessages = "allMessages"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type SendMessageWS struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type AdminReplyWS struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// Server -> Client messages

// ChatMessageOut carries one persisted message; sent as "message" to the
// user room and as "newMessage" to the admin room.
type ChatMessageOut struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type HistoryOut struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

type AllMessagesOut struct {
	Type     string                   `json:"type"`
	Messages map[string][]ChatMessage `json:"messages"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Message: message,
	}
}

// APIResponse is the envelope for REST responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
