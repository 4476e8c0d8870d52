package models

// Capability is the authorization tag supplied by the identity collaborator.
type Capability string

const (
	CapabilityModerator Capability = "moderator"
	CapabilityStudent   Capability = "student"
	CapabilityOther     Capability = "other"
)

// ParseCapability normalises unknown tags to CapabilityOther.
func ParseCapability(raw string) Capability {
	switch Capability(raw) {
	case CapabilityModerator, CapabilityStudent:
		return Capability(raw)
	default:
		return CapabilityOther
	}
}

// Actor identifies who performs a mutation.
type Actor struct {
	ID         string     `json:"id"`
	Capability Capability `json:"capability"`
}

// IsModerator reports whether the actor may bypass topic locks.
func (a Actor) IsModerator() bool {
	return a.Capability == CapabilityModerator
}
