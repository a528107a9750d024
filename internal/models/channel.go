package models

// Channel is a named conversation with an explicit membership list. The
// creator becomes owner and sole initial member; the owner stays a member
// unless they explicitly leave.
type Channel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Members     []string `json:"user"`
	Posts       []Post   `json:"posts"`
}

// HasMember reports whether the given user belongs to the channel.
func (c *Channel) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate independently of the original.
func (c Channel) Clone() Channel {
	out := c
	out.Members = append([]string(nil), c.Members...)
	out.Posts = clonePosts(c.Posts)
	return out
}
