package authapi

// LoginRequest is the credential payload accepted by POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LogoutResponse acknowledges a revoked session.
type LogoutResponse struct {
	Status string `json:"status"`
}
