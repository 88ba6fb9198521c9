package models

// PushSubscriptionData mirrors one device's push subscription to the server:
// the delivery endpoint plus the base64url-encoded encryption keys.
type PushSubscriptionData struct {
	Endpoint string               `json:"endpoint"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}
