package domain

// User is the identity the external auth service vouches for. The backend
// never issues credentials itself; it only verifies the service's tokens.
type User struct {
	ID       string
	Email    string
	Username string
}
