// Package realtime pushes reports and notifications to dashboards over
// websockets and serves their inbox commands.
package realtime

import (
	"encoding/json"
	"strings"
)

// Inbound events.
const (
	EventRegisterUser       = "registerUser"
	EventMarkAsRead         = "markAsRead"
	EventMarkAllAsRead      = "markAllAsRead"
	EventDeleteNotification = "deleteNotification"
)

// Outbound events.
const (
	EventNewNotification     = "newNotification"
	EventNotificationsUpdate = "notificationsUpdate"
	EventError               = "error"
)

// Message is one websocket frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// newMessage encodes data under event.
func newMessage(event string, data interface{}) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: raw}, nil
}

// Registration is the payload of registerUser. Clients send either a bare
// identity string or an object.
type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Identity returns the claimed identity in the form the admin directory
// uses, so deliveries addressed by email find the connection.
func (r Registration) Identity() string {
	if r.Email != "" {
		return normalizeIdentity(r.Email)
	}
	return normalizeIdentity(r.Username)
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func parseRegistration(data json.RawMessage) (Registration, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return Registration{Username: name}, nil
	}
	var reg Registration
	err := json.Unmarshal(data, &reg)
	return reg, err
}

// notificationRef is the payload of markAsRead and deleteNotification.
type notificationRef struct {
	NotificationID string `json:"notificationId"`
}

func parseNotificationRef(data json.RawMessage) string {
	var ref notificationRef
	if err := json.Unmarshal(data, &ref); err == nil && ref.NotificationID != "" {
		return ref.NotificationID
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	return ""
}

type errorPayload struct {
	Message string `json:"message"`
}
