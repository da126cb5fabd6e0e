package dto

import "time"

// CredentialsRequest is the signup and login payload.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupResponse is returned by POST /api/users/signup.
type SignupResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginResponse is returned by POST /api/users/login.
type LoginResponse struct {
	Message     string    `json:"message"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	OnlineCount int       `json:"onlineCount"`
}

// UserView is the public shape of an authenticated user.
type UserView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// VerifyResponse is returned by GET /api/users/verify.
type VerifyResponse struct {
	Message string   `json:"message"`
	User    UserView `json:"user"`
}

// HeartbeatResponse is returned by POST /api/users/heartbeat.
type HeartbeatResponse struct {
	Success     bool `json:"success"`
	OnlineCount int  `json:"onlineCount"`
}

// MessageResponse carries a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// OnlineUser is one element of OnlineResponse.Users.
type OnlineUser struct {
	Username string `json:"username"`
}

// OnlineResponse is returned by GET /api/users/online.
type OnlineResponse struct {
	Count int          `json:"count"`
	Users []OnlineUser `json:"users"`
}
