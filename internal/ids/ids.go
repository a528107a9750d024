package ids

import "github.com/google/uuid"

// New returns a collision-resistant identifier for posts, DM threads and
// channels created on the client side of the store.
func New() string {
	return uuid.NewString()
}
