package domain

// Credentials authenticate a bot account against the backend.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccessToken is a bearer token issued at login.
type AccessToken string

// RegisteredClient is the backend's record of a registered client device.
type RegisteredClient struct {
	ID     DeviceID `json:"id"`
	Cookie string   `json:"cookie,omitempty"`
}

// Self describes the logged-in user.
type Self struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}
