package domain

import "time"

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Session identifies the caller for the duration of one request. It is built
// once by the auth middleware and passed explicitly; nothing reads identity
// from ambient state.
type Session struct {
	UserID int64
	Role   Role
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

type Profile struct {
	ID        int64
	Email     *string
	Name      *string
	AvatarURL *string
	Role      Role
	Status    *string
	CreatedAt time.Time
}
