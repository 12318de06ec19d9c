package models

import (
	"regexp"
	"time"
	"unicode/utf8"
)

// SecretType classifies a stored credential.
type SecretType string

const (
	SecretDiscordWebhook SecretType = "discord_webhook"
	SecretSlackWebhook   SecretType = "slack_webhook"
	SecretAPIKey         SecretType = "api_key"
	SecretCustom         SecretType = "custom"
)

// SecretTypes returns every secret type.
func SecretTypes() []SecretType {
	return []SecretType{SecretDiscordWebhook, SecretSlackWebhook, SecretAPIKey, SecretCustom}
}

func (t SecretType) Valid() bool {
	switch t {
	case SecretDiscordWebhook, SecretSlackWebhook, SecretAPIKey, SecretCustom:
		return true
	}

	return false
}

// SecretNamePattern constrains secret names so they can appear in {{secrets.<name>}}.
var SecretNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidSecretName reports whether name matches SecretNamePattern.
func ValidSecretName(name string) bool {
	return SecretNamePattern.MatchString(name)
}

// Secret is the metadata of a stored credential. The value is never returned.
type Secret struct {
	Name        string     `json:"name"`
	SecretType  SecretType `json:"secret_type"`
	MaskedValue string     `json:"masked_value"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SecretRequest is the body of POST /secrets.
type SecretRequest struct {
	Name       string     `json:"name"        validate:"required"`
	Value      string     `json:"value"       validate:"required"`
	SecretType SecretType `json:"secret_type" validate:"required,oneof=discord_webhook slack_webhook api_key custom"`
}

// SecretList is the body of GET /secrets.
type SecretList struct {
	Secrets []*Secret `json:"secrets"`
	Count   int       `json:"count"`
}

// MaskSecret hides all but the last four characters of value.
func MaskSecret(value string) string {
	const visible = 4

	n := utf8.RuneCountInString(value)
	if n <= visible {
		return "****"
	}

	runes := []rune(value)

	return "****" + string(runes[n-visible:])
}

// SecretRecord is a secret as the backend stores it, value included.
type SecretRecord struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	SecretType SecretType `json:"secret_type"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Metadata returns the client-facing view of the record.
func (r *SecretRecord) Metadata() *Secret {
	return &Secret{
		Name:        r.Name,
		SecretType:  r.SecretType,
		MaskedValue: MaskSecret(r.Value),
		CreatedAt:   r.CreatedAt,
	}
}
