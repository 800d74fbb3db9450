package domain

// Event types dispatched from the gateway connection.
type EventType string

const (
	EventTypeMemberJoin EventType = "member_join"
)

// MemberJoin is emitted when a user joins a guild the session can see.
type MemberJoin struct {
	GuildID string
	Member  Member
}
