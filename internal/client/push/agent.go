package push

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/common"
)

// GatewayAgent talks to the local gateway's subscription endpoints over HTTP.
type GatewayAgent struct {
	http *resty.Client
}

func NewGatewayAgent(baseURL string) *GatewayAgent {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	return &GatewayAgent{http: c}
}

func (a *GatewayAgent) Subscribe(ctx context.Context) (*models.PushSubscriptionData, error) {
	var sub models.PushSubscriptionData
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&sub).
		Post("/push/subscription")
	if err != nil {
		return nil, fmt.Errorf("%w: gateway: %v", common.ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway refused subscription: %s", resp.Status())
	}
	return &sub, nil
}

func (a *GatewayAgent) Unsubscribe(ctx context.Context) error {
	resp, err := a.http.R().
		SetContext(ctx).
		Delete("/push/subscription")
	if err != nil {
		return fmt.Errorf("%w: gateway: %v", common.ErrUnavailable, err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("gateway refused unsubscribe: %s", resp.Status())
	}
	return nil
}

func (a *GatewayAgent) Subscription(ctx context.Context) (*models.PushSubscriptionData, error) {
	var sub models.PushSubscriptionData
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&sub).
		Get("/push/subscription")
	if err != nil {
		return nil, fmt.Errorf("%w: gateway: %v", common.ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway subscription lookup failed: %s", resp.Status())
	}
	return &sub, nil
}
