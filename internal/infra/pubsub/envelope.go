package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
)

// PushEnvelope is the JSON body Pub/Sub push subscriptions POST to the worker. The local
// publisher produces the same shape so one endpoint serves both.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// NewPushEnvelope wraps event the way a push subscription delivers it.
func NewPushEnvelope(event *service.OAuthCallbackEvent, subscription string, publishedAt time.Time) (*PushEnvelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	env := &PushEnvelope{Subscription: subscription}
	env.Message.Data = base64.StdEncoding.EncodeToString(data)
	env.Message.Attributes = eventAttributes(event)
	env.Message.MessageID = event.CallbackID
	env.Message.PublishTime = publishedAt.UTC().Format(time.RFC3339)

	return env, nil
}

// Event decodes the callback event carried in the message data.
func (e *PushEnvelope) Event() (*service.OAuthCallbackEvent, error) {
	data, err := base64.StdEncoding.DecodeString(e.Message.Data)
	if err != nil {
		return nil, errors.Wrap(err, "message data is not base64")
	}

	var event service.OAuthCallbackEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, errors.Wrap(err, "message data is not a callback event")
	}

	return &event, nil
}

// Attribute returns a message attribute, or "".
func (e *PushEnvelope) Attribute(key string) string {
	return e.Message.Attributes[key]
}

// eventAttributes builds the message attributes used for filtering and tracing.
func eventAttributes(event *service.OAuthCallbackEvent) map[string]string {
	attributes := map[string]string{
		constants.AttrCallbackID: event.CallbackID,
		constants.AttrProvider:   event.Provider,
	}
	if event.RequestID != "" {
		attributes[constants.AttrRequestID] = event.RequestID
	}

	return attributes
}
