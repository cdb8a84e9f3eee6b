package domain

// Principal is the authenticated identity resolved from a session. It is
// session-scoped, never persisted as a domain entity: the ID is the identity
// provider's subject for the user, the token is the bearer credential the
// graph gateway presents on every request.
type Principal struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Token string `json:"-"`
}

// IsZero reports whether no principal is present.
func (p Principal) IsZero() bool { return p.ID.IsNil() }
