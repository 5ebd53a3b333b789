package posts

// CreatePostRequest carries a new post's content; ownership comes from the
// authenticated actor, never from the payload.
type CreatePostRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"required"`
}

// UpdatePostRequest carries partial updates; nil fields stay untouched.
type UpdatePostRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content,omitempty"`
}
