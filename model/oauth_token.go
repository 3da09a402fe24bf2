package model

// OAuthToken is the persisted form of a user's Zoho token bundle. Tokens holds
// the JSON encoded bundle, sealed when a master key is configured.
type OAuthToken struct {
	Row
	UserIdentifier string `gorm:"size:255;not null;index" json:"userIdentifier"`
	Tokens         string `gorm:"type:text;not null"      json:"tokens"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
