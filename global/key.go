package global

// Shared-cache key namespace. Every key is prefixed and TTL-bounded by its
// writer so a crashed process's state self-expires. When UseClusterTag is
// on, the variable part is wrapped in {braces} so related keys land on the
// same Redis Cluster slot and stay eligible for Lua scripts.

const keyPrefix = "cg:"

var UseClusterTag = false

func tag(s string) string {
	if UseClusterTag {
		return "{" + s + "}"
	}
	return s
}

// SessionKey holds one connection's SessionRecord hash.
func SessionKey(connID string) string {
	return keyPrefix + "sess:" + tag(connID)
}

// UserConnsKey is the per-user set of live connection IDs across processes.
func UserConnsKey(userID string) string {
	return keyPrefix + "user:" + tag(userID) + ":conns"
}

// RoomMembersKey is the cross-process membership set of a room.
func RoomMembersKey(roomID string) string {
	return keyPrefix + "room:" + tag(roomID) + ":members"
}

// RateKey is a windowed counter; kind distinguishes limiter families
// (message rate per connection, admission per user).
func RateKey(kind, id string) string {
	return keyPrefix + "rate:" + kind + ":" + tag(id)
}

// DenyKey marks a revoked credential by token hash.
func DenyKey(tokenHash string) string {
	return keyPrefix + "deny:" + tag(tokenHash)
}
