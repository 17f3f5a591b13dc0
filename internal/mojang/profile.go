package mojang

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Textures holds the texture locations advertised for an account.
type Textures struct {
	SkinURL string
	CapeURL string
	Slim    bool
}

// HasCape reports whether the account advertises a cape.
func (t Textures) HasCape() bool {
	return t.CapeURL != ""
}

// Profile is the resolved state of one account.
type Profile struct {
	ID        string
	Name      string
	Timestamp int64
	Textures  Textures
}

// DashedID returns the account id in dashed form.
func (p *Profile) DashedID() string {
	return DashedID(p.ID)
}

type profileResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties []profileProperty `json:"properties"`
}

type profileProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type texturesPayload struct {
	Timestamp   int64  `json:"timestamp"`
	ProfileID   string `json:"profileId"`
	ProfileName string `json:"profileName"`
	Textures    map[string]struct {
		URL      string `json:"url"`
		Metadata struct {
			Model string `json:"model"`
		} `json:"metadata"`
	} `json:"textures"`
}

type handleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// decodeProfile turns a session-server body into a Profile. The textures
// property is a base64 encoded JSON document.
func decodeProfile(body []byte) (*Profile, error) {
	var resp profileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: profile body: %v", ErrDecode, err)
	}
	if !IsCanonicalID(resp.ID) {
		return nil, fmt.Errorf("%w: profile id %q", ErrDecode, resp.ID)
	}

	var raw string
	for _, prop := range resp.Properties {
		if prop.Name == "textures" {
			raw = prop.Value
			break
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: textures property missing", ErrDecode)
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "=")); err != nil {
			return nil, fmt.Errorf("%w: textures property: %v", ErrDecode, err)
		}
	}

	var payload texturesPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return nil, fmt.Errorf("%w: textures payload: %v", ErrDecode, err)
	}

	profile := &Profile{
		ID:        NormalizeID(resp.ID),
		Name:      resp.Name,
		Timestamp: payload.Timestamp,
	}
	if skin, ok := payload.Textures["SKIN"]; ok {
		profile.Textures.SkinURL = skin.URL
		profile.Textures.Slim = strings.EqualFold(skin.Metadata.Model, "slim")
	}
	if cape, ok := payload.Textures["CAPE"]; ok {
		profile.Textures.CapeURL = cape.URL
	}
	return profile, nil
}
