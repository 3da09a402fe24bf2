package api

type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func NewErrorResponse(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newHealthResponse(service string) HealthResponse {
	return HealthResponse{Status: "OK", Message: service + " is running"}
}

type authStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	ExpiresIn     *int64 `json:"expires_in,omitempty"`
	AuthURL       string `json:"auth_url,omitempty"`
}

type revokeRequest struct {
	User string `json:"user"`
}

type revokeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type voiceErrorResponse struct {
	Error string  `json:"error"`
	Text  string  `json:"text"`
	Audio *string `json:"audio"`
}

type versionResponse struct {
	Version string        `json:"version"`
	Config  versionConfig `json:"config"`
}

type versionConfig struct {
	HasFinancialService bool `json:"hasFinancialService"`
	OpenAIConfigured    bool `json:"openAIConfigured"`
}
