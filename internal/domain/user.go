package domain

// User is a member of zero or more groups. Names are display labels and are
// not guaranteed unique; identity is the ID.
type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}
