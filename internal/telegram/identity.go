package telegram

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Identity is the subset of a Telegram account the service keeps.
type Identity struct {
	ProviderID string `json:"providerId"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
}

// identityFromFields reads a Login Widget payload.
func identityFromFields(fields map[string]string) Identity {
	return Identity{
		ProviderID: fields["id"],
		Username:   fields["username"],
		FirstName:  fields["first_name"],
		LastName:   fields["last_name"],
		PhotoURL:   fields["photo_url"],
	}
}

// webAppUser mirrors the JSON "user" object inside Mini-App initData.
type webAppUser struct {
	ID        json.Number `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Username  string      `json:"username"`
	PhotoURL  string      `json:"photo_url"`
}

// ParseMiniAppUser decodes the "user" field of verified initData.
func ParseMiniAppUser(fields map[string]string) (Identity, error) {
	raw := strings.TrimSpace(fields["user"])
	if raw == "" {
		return Identity{}, missing("user")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var u webAppUser
	if err := dec.Decode(&u); err != nil {
		return Identity{}, missing("user")
	}
	if _, err := strconv.ParseInt(u.ID.String(), 10, 64); err != nil {
		return Identity{}, missing("user.id")
	}

	return Identity{
		ProviderID: u.ID.String(),
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoURL:   u.PhotoURL,
	}, nil
}
