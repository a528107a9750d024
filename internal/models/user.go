package models

// User is the persisted record of a registered identity. Direct-message
// threads are embedded in the user document rather than stored on their own:
// a conversation between A and B exists twice, once in each participant's
// record, each side carrying its own copy of the post list.
type User struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Email  string                `json:"email"`
	Avatar string                `json:"avatar"`
	Online bool                  `json:"online"`
	DMs    []DirectMessageThread `json:"dm"`
}

// DirectMessageThread is one side of a direct-message conversation. The
// symmetric copy in the contact's record shares the same thread ID, with
// Contact pointing back at this user. A self-DM (Contact == owning user)
// exists as a single copy.
type DirectMessageThread struct {
	ID      string `json:"id"`
	Contact string `json:"contact"`
	Posts   []Post `json:"posts"`
}

// DMThread returns the thread with the given id.
func (u *User) DMThread(id string) (DirectMessageThread, bool) {
	for _, t := range u.DMs {
		if t.ID == id {
			return t, true
		}
	}
	return DirectMessageThread{}, false
}

// DMThreadWith returns the thread whose contact is the given user id.
func (u *User) DMThreadWith(contactID string) (DirectMessageThread, bool) {
	for _, t := range u.DMs {
		if t.Contact == contactID {
			return t, true
		}
	}
	return DirectMessageThread{}, false
}

// Clone returns a deep copy safe to mutate independently of the original.
func (u User) Clone() User {
	out := u
	out.DMs = make([]DirectMessageThread, len(u.DMs))
	for i, t := range u.DMs {
		out.DMs[i] = t
		out.DMs[i].Posts = clonePosts(t.Posts)
	}
	return out
}
