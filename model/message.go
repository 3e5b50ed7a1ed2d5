package model

const MessageTypeText = "text"

/*

Message is a direct message between two users. Immutable after creation
except the Read flag. Display order is Timestamp ascending.

*/

type Message struct {
	Id         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
	Read       bool   `json:"read"`
}
