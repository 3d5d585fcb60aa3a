package model

// Identity is the caller resolved from a request credential. UserID is
// always set; Email only when the credential carried one.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Anonymous reports whether no caller was resolved.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}
