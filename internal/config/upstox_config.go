package config

type Upstox struct {
	file *FileValues
}

var _ UpstoxConfig = Upstox{}

func (u Upstox) GetUpstoxClientID() string {
	return lookup("UPSTOX_CLIENT_ID", u.file.Upstox.ClientID, "")
}

func (u Upstox) GetUpstoxClientSecret() string {
	return lookup("UPSTOX_CLIENT_SECRET", u.file.Upstox.ClientSecret, "")
}

// GetUpstoxRedirectURI defaults to the /auth callback on this server.
func (u Upstox) GetUpstoxRedirectURI() string {
	return lookup("UPSTOX_REDIRECT_URI", u.file.Upstox.RedirectURI, EnvVars{file: u.file}.GetBaseURL()+"/auth")
}

func (u Upstox) GetUpstoxBaseURL() string {
	return lookup("UPSTOX_BASE_URL", u.file.Upstox.BaseURL, "https://api.upstox.com")
}
