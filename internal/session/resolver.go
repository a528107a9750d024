package session

import "dabubble/internal/models"

// Resolve computes the current channel or DM thread id for a just-loaded
// user, in strict precedence order:
//
//  1. a persisted id from the previous session wins unconditionally: it is
//     not checked against current membership, so a stale or deleted id still
//     wins and the caller renders an empty view (documented behavior, do not
//     add a fallback here);
//  2. otherwise the first channel whose membership contains the user;
//  3. otherwise the user's self-DM thread;
//  4. otherwise there is no current channel.
func Resolve(user models.User, channels []models.Channel, persisted string) (string, bool) {
	if persisted != "" {
		return persisted, true
	}
	for _, ch := range channels {
		if ch.HasMember(user.ID) {
			return ch.ID, true
		}
	}
	if t, ok := user.DMThreadWith(user.ID); ok {
		return t.ID, true
	}
	return "", false
}
