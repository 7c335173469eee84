package core

const (
	// UnknownActor attributes balance movements made without a session.
	UnknownActor = "unknown"
	// UnknownAdmin attributes audit entries made without an admin session.
	UnknownAdmin = "Unknown"
)

// Session holds the snapshots of the authenticated user and admin taken at
// login time. Either or both may be nil. Snapshots are not refreshed when the
// underlying records change.
type Session struct {
	User  *User  `json:"user,omitempty"`
	Admin *Admin `json:"admin,omitempty"`
}

func (s Session) IsUser() bool  { return s.User != nil }
func (s Session) IsAdmin() bool { return s.Admin != nil }

// GoalActor prefers the end user, then the admin.
func (s Session) GoalActor() string {
	if s.User != nil && s.User.Name != "" {
		return s.User.Name
	}
	if s.Admin != nil && s.Admin.Username != "" {
		return s.Admin.Username
	}
	return UnknownActor
}

// SavingsActor only considers the end user.
func (s Session) SavingsActor() string {
	if s.User != nil && s.User.Name != "" {
		return s.User.Name
	}
	return UnknownActor
}

func (s Session) AuditActor() string {
	if s.Admin != nil && s.Admin.Username != "" {
		return s.Admin.Username
	}
	return UnknownAdmin
}
