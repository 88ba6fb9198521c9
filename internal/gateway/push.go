package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/webpushx"
)

// DefaultNotificationTag groups egg notifications so a new delivery replaces
// the previous one instead of stacking.
const DefaultNotificationTag = "egg-notification"

// Notification is what the gateway asks the device to display.
type Notification struct {
	ID       string
	Title    string
	Body     string
	URL      string
	EventID  string
	Tag      string
	Renotify bool
	Actions  []NotificationAction
}

type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notifier displays notifications on the device.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, id string) error
}

// WindowClient is one open app window.
type WindowClient interface {
	Origin() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// WindowManager enumerates and opens app windows.
type WindowManager interface {
	Windows(ctx context.Context) []WindowClient
	Open(ctx context.Context, url string) error
}

// pushPayload is the JSON body the backend encrypts into a delivery.
type pushPayload struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	URL     string               `json:"url"`
	EventID string               `json:"eventId"`
	Tag     string               `json:"tag"`
	Actions []NotificationAction `json:"actions"`
}

// handleSubscribe creates the device subscription, or returns the existing
// one unchanged.
func (g *Gateway) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := g.store.Subscription(ctx)
	if err != nil {
		g.log.Error(ctx, "loading subscription", "error", err)
		http.Error(w, "subscription storage failed", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		g.writeSubscription(w, http.StatusOK, existing)
		return
	}

	keys, err := webpushx.GenerateKeys()
	if err != nil {
		g.log.Error(ctx, "generating subscription keys", "error", err)
		http.Error(w, "key generation failed", http.StatusInternalServerError)
		return
	}
	sub := Subscription{
		Endpoint:   strings.TrimRight(g.cfg.PublicURL, "/") + "/push/deliver/" + uuid.NewString(),
		PrivateKey: keys.PrivateKey(),
		AuthSecret: keys.AuthSecret(),
		CreatedAt:  time.Now(),
	}
	if err := g.store.SaveSubscription(ctx, sub); err != nil {
		g.log.Error(ctx, "saving subscription", "error", err)
		http.Error(w, "subscription storage failed", http.StatusInternalServerError)
		return
	}
	g.log.Info(ctx, "push subscription created", "endpoint", sub.Endpoint)
	g.writeSubscription(w, http.StatusCreated, &sub)
}

func (g *Gateway) handleSubscriptionGet(w http.ResponseWriter, r *http.Request) {
	sub, err := g.store.Subscription(r.Context())
	if err != nil {
		g.log.Error(r.Context(), "loading subscription", "error", err)
		http.Error(w, "subscription storage failed", http.StatusInternalServerError)
		return
	}
	if sub == nil {
		http.Error(w, "no subscription", http.StatusNotFound)
		return
	}
	g.writeSubscription(w, http.StatusOK, sub)
}

func (g *Gateway) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := g.store.DeleteSubscription(r.Context()); err != nil {
		g.log.Error(r.Context(), "deleting subscription", "error", err)
		http.Error(w, "subscription storage failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSubscription renders the wire form of a subscription: the endpoint
// plus the public half of the key material.
func (g *Gateway) writeSubscription(w http.ResponseWriter, status int, sub *Subscription) {
	keys, err := webpushx.LoadKeys(sub.PrivateKey, sub.AuthSecret)
	if err != nil {
		http.Error(w, "corrupt subscription keys", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.PushSubscriptionData{
		Endpoint: sub.Endpoint,
		Keys: models.PushSubscriptionKeys{
			P256dh: keys.P256dh(),
			Auth:   keys.Auth(),
		},
	})
}

// handleDelivery accepts an encrypted push message from the push service,
// decrypts it and raises a notification. A delivery for an unknown endpoint
// answers 410 so the sender drops the registration.
func (g *Gateway) handleDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	sub, err := g.store.Subscription(ctx)
	if err != nil {
		g.log.Error(ctx, "loading subscription", "error", err)
		http.Error(w, "subscription storage failed", http.StatusInternalServerError)
		return
	}
	if sub == nil || !strings.HasSuffix(sub.Endpoint, "/"+token) {
		pushDeliveries.WithLabelValues("gone").Inc()
		http.Error(w, "subscription gone", http.StatusGone)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCachedBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	keys, err := webpushx.LoadKeys(sub.PrivateKey, sub.AuthSecret)
	if err != nil {
		g.log.Error(ctx, "loading subscription keys", "error", err)
		http.Error(w, "corrupt subscription keys", http.StatusInternalServerError)
		return
	}
	plaintext, err := webpushx.Decrypt(keys, body)
	if err != nil {
		pushDeliveries.WithLabelValues("decrypt_error").Inc()
		g.log.Warn(ctx, "rejecting undecryptable delivery", "error", err)
		http.Error(w, "undecryptable delivery", http.StatusBadRequest)
		return
	}

	n := notificationFrom(plaintext)
	if err := g.notifier.Show(ctx, n); err != nil {
		pushDeliveries.WithLabelValues("display_error").Inc()
		g.log.Error(ctx, "showing notification", "error", err)
		http.Error(w, "notification failed", http.StatusInternalServerError)
		return
	}
	pushDeliveries.WithLabelValues("ok").Inc()
	g.log.Info(ctx, "push delivered", "notification_id", n.ID, "tag", n.Tag)
	w.WriteHeader(http.StatusCreated)
}

// notificationFrom builds a Notification from a decrypted payload. A body
// that is not the expected JSON becomes a plain-text notification rather
// than a dropped delivery.
func notificationFrom(plaintext []byte) Notification {
	n := Notification{
		ID:       uuid.NewString(),
		Title:    "Eggs Regaco",
		Tag:      DefaultNotificationTag,
		Renotify: true,
	}

	var p pushPayload
	if err := json.Unmarshal(plaintext, &p); err != nil || p.Title == "" && p.Body == "" {
		n.Body = string(plaintext)
		return n
	}
	if p.Title != "" {
		n.Title = p.Title
	}
	n.Body = p.Body
	n.URL = p.URL
	n.EventID = p.EventID
	n.Actions = p.Actions
	// An event-scoped payload without an explicit target deep-links to the
	// event detail.
	if n.URL == "" && n.EventID != "" {
		n.URL = "/event/" + n.EventID
	}
	if p.Tag != "" {
		n.Tag = p.Tag
	}
	return n
}

// NotificationClick is the user interacting with a displayed notification.
type NotificationClick struct {
	NotificationID string
	Action         string
	EventID        string
	URL            string
}

// HandleNotificationClick closes the notification and routes the click:
// the confirm action jumps to the confirmation screen, view to the event
// detail, anything else to the notification's URL (falling back to the event
// detail when only an event id is present). An existing window on the app
// origin is focused and navigated; otherwise a new one opens.
func (g *Gateway) HandleNotificationClick(ctx context.Context, click NotificationClick) error {
	if err := g.notifier.Close(ctx, click.NotificationID); err != nil {
		g.log.Warn(ctx, "closing notification", "error", err)
	}

	target := click.URL
	switch click.Action {
	case "confirm":
		target = "/confirm/" + click.EventID
	case "view":
		target = "/event/" + click.EventID
	}
	if target == "" && click.EventID != "" {
		target = "/event/" + click.EventID
	}
	if target == "" {
		target = "/"
	}

	for _, win := range g.windows.Windows(ctx) {
		if win.Origin() != g.cfg.PublicURL {
			continue
		}
		if err := win.Focus(ctx); err != nil {
			g.log.Warn(ctx, "focusing window", "error", err)
			continue
		}
		return win.Navigate(ctx, target)
	}
	return g.windows.Open(ctx, target)
}
