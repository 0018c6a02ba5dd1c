package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

type envelopeJSON struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionJSON struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerEmail     string `json:"customer_email"`
	CustomerDetails   *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	PaymentIntent json.RawMessage `json:"payment_intent"`
}

type paymentIntentJSON struct {
	ID               string `json:"id"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// Decode parses an authenticated body into its envelope and typed event.
// Types the service does not react to return domain.ErrUnhandledEventType
// together with a populated envelope.
func Decode(body []byte) (domain.Envelope, domain.Event, error) {
	var raw envelopeJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Envelope{}, nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if raw.Type == "" {
		return domain.Envelope{}, nil, fmt.Errorf("%w: missing type", domain.ErrInvalidPayload)
	}

	env := domain.Envelope{ID: raw.ID, Type: raw.Type}
	if raw.Created > 0 {
		env.Created = time.Unix(raw.Created, 0).UTC()
	}

	switch raw.Type {
	case domain.EventCheckoutCompleted:
		var s checkoutSessionJSON
		if err := unmarshalObject(raw.Data.Object, &s); err != nil {
			return env, nil, err
		}
		email := s.CustomerEmail
		if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
			email = s.CustomerDetails.Email
		}
		return env, domain.CheckoutCompleted{
			SessionID:       s.ID,
			ClientReference: s.ClientReferenceID,
			CustomerEmail:   email,
			PaymentIntentID: expandableID(s.PaymentIntent),
		}, nil
	case domain.EventPaymentSucceeded:
		var pi paymentIntentJSON
		if err := unmarshalObject(raw.Data.Object, &pi); err != nil {
			return env, nil, err
		}
		if pi.ID == "" {
			return env, nil, fmt.Errorf("%w: payment intent without id", domain.ErrInvalidPayload)
		}
		return env, domain.PaymentSucceeded{PaymentIntentID: pi.ID}, nil
	case domain.EventPaymentFailed:
		var pi paymentIntentJSON
		if err := unmarshalObject(raw.Data.Object, &pi); err != nil {
			return env, nil, err
		}
		if pi.ID == "" {
			return env, nil, fmt.Errorf("%w: payment intent without id", domain.ErrInvalidPayload)
		}
		ev := domain.PaymentFailed{PaymentIntentID: pi.ID}
		if pi.LastPaymentError != nil {
			ev.FailureMessage = pi.LastPaymentError.Message
		}
		return env, ev, nil
	default:
		return env, nil, domain.ErrUnhandledEventType
	}
}

func unmarshalObject(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data.object", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}

// expandableID reads a field the provider sends either as an id string or as
// an expanded object with an "id" member.
func expandableID(data json.RawMessage) string {
	if len(data) == 0 || string(data) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ID
	}
	return ""
}
