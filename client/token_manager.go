package client

// TokenManager persists the session's token pair between process runs.
// Different implementations can store tokens in files, keychains, databases, etc.
type TokenManager interface {
	// LoadTokens returns the stored pair; empty strings mean nothing is stored
	LoadTokens() (authToken, refreshToken string, err error)

	// SaveTokens stores the current pair, replacing any previous one
	SaveTokens(authToken, refreshToken string) error

	// ClearTokens removes stored credentials
	ClearTokens() error
}
