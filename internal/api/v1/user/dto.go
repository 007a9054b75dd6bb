package user

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	PromptCount int64  `json:"prompt_count"`
}
