package domain

// WebSocket message types from client.
const (
	MsgTypeChatMessage = "chat_message"
	MsgTypeMarkRead    = "mark_read"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeReadReceipt = "read_receipt"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type ChatMessageIn struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Server -> Client messages

type ChatMessageOut struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

func NewChatMessageOut(msg Message) *ChatMessageOut {
	return &ChatMessageOut{Type: MsgTypeChatMessage, Message: msg}
}

type ReadReceiptOut struct {
	Type     string `json:"type"`
	ReaderID string `json:"reader_id"`
	Count    int64  `json:"count"`
}

func NewReadReceiptOut(readerID string, count int64) *ReadReceiptOut {
	return &ReadReceiptOut{Type: MsgTypeReadReceipt, ReaderID: readerID, Count: count}
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
