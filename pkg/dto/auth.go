package dto

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}
