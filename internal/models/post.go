package models

// Post is a single message inside a channel or DM thread. Thread is true iff
// ThreadMsgs is non-empty; nesting is exactly one level deep, a post inside
// ThreadMsgs never carries thread replies of its own.
type Post struct {
	ID         string     `json:"id"`
	Author     string     `json:"author"`
	Text       string     `json:"text"`
	Timestamp  int64      `json:"timestamp"`
	Thread     bool       `json:"thread"`
	Reactions  []Reaction `json:"emoticons,omitempty"`
	ThreadMsgs []Post     `json:"threadMsg,omitempty"`
}

// Reaction aggregates one emoji across all reactors of a post. Count is
// stored alongside Names rather than derived; the Count == len(Names)
// invariant is best effort only, concurrent reactors can race.
type Reaction struct {
	Type  string   `json:"type"`
	Names []string `json:"name"`
	Count int      `json:"count"`
}

// HasReactor reports whether the given user is recorded on the reaction.
func (r *Reaction) HasReactor(userID string) bool {
	for _, id := range r.Names {
		if id == userID {
			return true
		}
	}
	return false
}

func clonePosts(posts []Post) []Post {
	if posts == nil {
		return nil
	}
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = p
		out[i].Reactions = make([]Reaction, len(p.Reactions))
		for j, r := range p.Reactions {
			out[i].Reactions[j] = r
			out[i].Reactions[j].Names = append([]string(nil), r.Names...)
		}
		if len(p.Reactions) == 0 {
			out[i].Reactions = nil
		}
		out[i].ThreadMsgs = clonePosts(p.ThreadMsgs)
	}
	return out
}
