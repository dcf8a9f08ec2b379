package model

// User is the session record for the currently authenticated user.
// It is mirrored into the local key-value store on every mutation.
type User struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	MFAEnabled   bool   `json:"mfaEnabled"`
	MFAVerified  bool   `json:"mfaVerified"`
}
