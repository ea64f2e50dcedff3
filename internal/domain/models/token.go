package models

// TokenPair is handed to the caller on register and login. The access token
// is self-verifying and never stored; only the refresh token is persisted.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
