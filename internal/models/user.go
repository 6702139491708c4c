package models

// User is an operator account. Only the service layer reads PasswordHash;
// it never leaves the server in a response body.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
