package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming for conversation fan-out between instances.
const (
	conversationPrefix = "chat:conversation:"

	// ConversationPattern matches every conversation channel.
	ConversationPattern = conversationPrefix + "*"
)

// Event types carried on conversation channels.
const (
	EventChatMessage = "chat_message"
	EventReadReceipt = "read_receipt"
)

// ConversationChannel returns the bus channel for a conversation key.
func ConversationChannel(channelKey string) string {
	return fmt.Sprintf("%s%s", conversationPrefix, channelKey)
}

// ChannelKeyFromConversation extracts the conversation key from a bus
// channel name.
func ChannelKeyFromConversation(channel string) (string, bool) {
	if !strings.HasPrefix(channel, conversationPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(channel, conversationPrefix)
	return key, key != ""
}
