package domain

// Credential is the ticket-system OAuth credential. Only AccessToken changes at runtime.
type Credential struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
}

// CanRefresh reports whether the long-lived secrets needed for a refresh are present.
func (c Credential) CanRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}
