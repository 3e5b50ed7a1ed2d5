package model

/*

User is a registered account.

Id: store-generated opaque id, immutable once assigned
Username: display / login name. Uniqueness is enforced at write time by a
		pre-check query against the users collection, not by the store itself.
PasswordHash: bcrypt hash, never the raw password
Avatar: relative url of the profile image
IsAdmin: whether the account can reach the admin dashboard
CreatedAt / LastActive / LastUpdated: unix milliseconds

*/

type User struct {
	Id           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	Avatar       string `json:"avatar"`
	IsAdmin      bool   `json:"isAdmin"`
	CreatedAt    int64  `json:"createdAt"`
	LastActive   int64  `json:"lastActive"`
	LastUpdated  int64  `json:"lastUpdated,omitempty"`
}

const DefaultAvatar = "./assets/images/avatar-male.png"
