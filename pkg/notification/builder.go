package notification

import (
	"math"

	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// Build creates a Notification from the request's data map and optional expiration
// timestamp. Unknown keys are copied verbatim into Payload.
func Build(data map[string]any, expiration *int64) (*Notification, error) {
	n := &Notification{Payload: make(map[string]any)}

	for key, value := range data {
		switch key {
		case KeyAlert:
			switch v := value.(type) {
			case string, map[string]any:
				n.Alert = v
			case nil:
			default:
				return nil, invalidField(key, value)
			}
		case KeyBadge:
			badge, ok := toInt(value)
			if !ok {
				return nil, invalidField(key, value)
			}
			n.Badge = &badge
		case KeySound:
			sound, ok := value.(string)
			if !ok {
				return nil, invalidField(key, value)
			}
			n.Sound = sound
		case KeyContentAvailable:
			n.NewsstandAvailable = true
			v, ok := toInt(value)
			n.ContentAvailable = ok && v == 1
		case KeyCategory:
			category, ok := value.(string)
			if !ok {
				return nil, invalidField(key, value)
			}
			n.Category = category
		default:
			n.Payload[key] = value
		}
	}

	if expiration != nil {
		exp := *expiration
		n.Expiry = &exp
	}
	return n, nil
}

// toInt accepts Go integers and integral JSON numbers.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

func invalidField(key string, value any) error {
	return apnserrors.Newf(apnserrors.ErrInvalidPayload, "field %q has unsupported type %T", key, value).
		WithContext("field", key)
}
