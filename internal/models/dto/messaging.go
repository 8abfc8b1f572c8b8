package dto

type StartThreadRequest struct {
	ParticipantID int64  `json:"participant_id"`
	BountyID      *int64 `json:"bounty_id"`
}

type SendMessageRequest struct {
	Body string `json:"body"`
}

type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}
