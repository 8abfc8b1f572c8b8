package dto

type ConnectResponse struct {
	AccountID      string `json:"account_id"`
	OnboardingURL  string `json:"onboarding_url,omitempty"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

type DigestResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type UploadResponse struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
