package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes the structured sub-objects of a record into opaque blobs.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBORCodec produces smaller blobs than JSON. Field names follow the json tags.
type CBORCodec struct{}

func (CBORCodec) Name() string                       { return "cbor" }
func (CBORCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (CBORCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// CodecByName resolves "json" or "cbor". The empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown blob codec %q", name)
	}
}

const recordSchemaVersion = "1"

// Record field names shared by the hash-based backends.
const (
	fieldVersion      = "v"
	fieldCodec        = "enc"
	fieldID           = "id"
	fieldCartID       = "cart_id"
	fieldCartVersion  = "cart_version"
	fieldPaymentToken = "payment_token"
	fieldTokenType    = "token_type"
	fieldCustomerID   = "customer_id"
	fieldAnonymousID  = "anonymous_id"
	fieldBilling      = "billing"
	fieldShipping     = "shipping"
	fieldSetup        = "setup"
	fieldStatus       = "status"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
	fieldTTL          = "ttl"
)

var errCorruptRecord = errors.New("corrupt session record")

// encodeRecord flattens s into hash fields. Only the ownership field that is
// set is written; optional blobs are omitted when empty.
func encodeRecord(s *Session, codec Codec) (map[string]string, error) {
	billing, err := codec.Marshal(s.BillingDetails)
	if err != nil {
		return nil, fmt.Errorf("encode billing details: %w", err)
	}

	fields := map[string]string{
		fieldVersion:      recordSchemaVersion,
		fieldCodec:        codec.Name(),
		fieldID:           s.ID,
		fieldCartID:       s.CartID,
		fieldCartVersion:  strconv.FormatInt(s.CartVersion, 10),
		fieldPaymentToken: s.PaymentToken,
		fieldTokenType:    string(s.TokenType),
		fieldBilling:      string(billing),
		fieldStatus:       string(s.Status),
		fieldCreatedAt:    strconv.FormatInt(s.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt:    strconv.FormatInt(s.ExpiresAt.UnixMilli(), 10),
		fieldTTL:          strconv.FormatInt(s.ExpiresAt.Unix(), 10),
	}
	if s.CustomerID != "" {
		fields[fieldCustomerID] = s.CustomerID
	}
	if s.AnonymousID != "" {
		fields[fieldAnonymousID] = s.AnonymousID
	}
	if s.ShippingDetails != nil {
		shipping, err := codec.Marshal(s.ShippingDetails)
		if err != nil {
			return nil, fmt.Errorf("encode shipping details: %w", err)
		}
		fields[fieldShipping] = string(shipping)
	}
	if len(s.AuthenticationSetupData) > 0 {
		fields[fieldSetup] = string(s.AuthenticationSetupData)
	}
	return fields, nil
}

// decodeRecord rebuilds a session from hash fields. An empty map means the
// record does not exist and yields (nil, nil).
func decodeRecord(fields map[string]string) (*Session, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if v := fields[fieldVersion]; v != recordSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %q", errCorruptRecord, v)
	}
	codec, err := CodecByName(fields[fieldCodec])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}

	s := &Session{
		ID:           fields[fieldID],
		CartID:       fields[fieldCartID],
		PaymentToken: fields[fieldPaymentToken],
		TokenType:    TokenType(fields[fieldTokenType]),
		CustomerID:   fields[fieldCustomerID],
		AnonymousID:  fields[fieldAnonymousID],
		Status:       Status(fields[fieldStatus]),
	}
	if s.ID == "" {
		return nil, fmt.Errorf("%w: missing id", errCorruptRecord)
	}
	if s.Status != StatusPending && s.Status != StatusUsed {
		return nil, fmt.Errorf("%w: invalid status %q", errCorruptRecord, s.Status)
	}

	if s.CartVersion, err = strconv.ParseInt(fields[fieldCartVersion], 10, 64); err != nil {
		return nil, fmt.Errorf("%w: cart version: %v", errCorruptRecord, err)
	}
	if s.CreatedAt, err = parseMillis(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", errCorruptRecord, err)
	}
	if s.ExpiresAt, err = parseMillis(fields[fieldExpiresAt]); err != nil {
		return nil, fmt.Errorf("%w: expires_at: %v", errCorruptRecord, err)
	}

	if err := codec.Unmarshal([]byte(fields[fieldBilling]), &s.BillingDetails); err != nil {
		return nil, fmt.Errorf("%w: billing details: %v", errCorruptRecord, err)
	}
	if raw, ok := fields[fieldShipping]; ok {
		var shipping ShippingDetails
		if err := codec.Unmarshal([]byte(raw), &shipping); err != nil {
			return nil, fmt.Errorf("%w: shipping details: %v", errCorruptRecord, err)
		}
		s.ShippingDetails = &shipping
	}
	if raw, ok := fields[fieldSetup]; ok && raw != "" {
		s.AuthenticationSetupData = json.RawMessage(raw)
	}

	return s, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// createArgs builds the createScript ARGV: key expiry in unix ms, then the
// record fields.
func createArgs(s *Session, fields map[string]string) []string {
	return append([]string{strconv.FormatInt(s.ExpiresAt.UnixMilli(), 10)}, fieldArgs(fields)...)
}

// fieldArgs flattens fields into alternating name/value arguments.
func fieldArgs(fields map[string]string) []string {
	args := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
