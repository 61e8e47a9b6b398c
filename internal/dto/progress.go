package dto

// TrackProgressRequest is one progress event for a lecture.
type TrackProgressRequest struct {
	Progress     *int    `json:"progress" validate:"required,min=0,max=100"`
	LastPosition *int    `json:"lastPosition" validate:"omitempty,min=0"`
	Notes        *string `json:"notes" validate:"omitempty,max=4000"`
}
