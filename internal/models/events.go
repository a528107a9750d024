package models

// ChatEvent is broadcasted through websockets to clients watching a
// conversation (channel or DM thread).
type ChatEvent struct {
	Type           string     `json:"type"`
	ConversationID string     `json:"conversation_id"`
	Post           *Post      `json:"post,omitempty"`
	PostID         string     `json:"post_id,omitempty"`
	Reactions      []Reaction `json:"reactions,omitempty"`
}
