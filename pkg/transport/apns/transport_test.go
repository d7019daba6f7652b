package apns

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/notification"
)

type fakePusher struct {
	mu       sync.Mutex
	requests []*apns2.Notification
	respond  func(n *apns2.Notification) (*apns2.Response, error)
}

func (f *fakePusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, n)
	f.mu.Unlock()
	return f.respond(n)
}

func reply(status int, reason string) func(*apns2.Notification) (*apns2.Response, error) {
	return func(*apns2.Notification) (*apns2.Response, error) {
		return &apns2.Response{StatusCode: status, Reason: reason, ApnsID: "id-1"}, nil
	}
}

func nextEvent(t *testing.T, tr *Transport) channel.Event {
	t.Helper()
	select {
	case ev := <-tr.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return channel.Event{}
	}
}

func TestTransport_Transmitted(t *testing.T) {
	pusher := &fakePusher{respond: reply(apns2.StatusSent, "")}
	tr := NewTransport(pusher, "com.example.app")
	defer tr.Close()

	assert.Equal(t, channel.EventConnected, nextEvent(t, tr).Type)

	n := &notification.Notification{Alert: "hello"}
	d := channel.NewDevice(channel.Recipient{DeviceToken: []byte{0xab, 0xcd}}, nil)
	tr.Transmit(n, d)

	ev := nextEvent(t, tr)
	assert.Equal(t, channel.EventTransmitted, ev.Type)
	assert.Same(t, n, ev.Notification)
	assert.Same(t, d, ev.Device)

	require.Len(t, pusher.requests, 1)
	req := pusher.requests[0]
	assert.Equal(t, "abcd", req.DeviceToken)
	assert.Equal(t, "com.example.app", req.Topic)
	assert.Equal(t, apns2.PushTypeAlert, req.PushType)
}

func TestTransport_Rejected(t *testing.T) {
	tests := []struct {
		reason string
		code   int
	}{
		{apns2.ReasonBadDeviceToken, channel.CodeInvalidToken},
		{apns2.ReasonUnregistered, channel.CodeInvalidToken},
		{apns2.ReasonPayloadTooLarge, channel.CodeInvalidPayloadSize},
		{apns2.ReasonTopicDisallowed, channel.CodeInvalidTopicSize},
		{apns2.ReasonShutdown, channel.CodeShutdown},
		{"SomethingNew", channel.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			tr := NewTransport(&fakePusher{respond: reply(400, tt.reason)}, "com.example.app")
			defer tr.Close()
			nextEvent(t, tr)

			tr.Transmit(&notification.Notification{}, channel.NewDevice(channel.Recipient{DeviceToken: []byte{1}}, nil))
			ev := nextEvent(t, tr)
			assert.Equal(t, channel.EventTransmissionError, ev.Type)
			assert.Equal(t, tt.code, ev.Code)

			var respErr *ResponseError
			require.ErrorAs(t, ev.Err, &respErr)
			assert.Equal(t, tt.reason, respErr.Reason)
		})
	}
}

func TestTransport_NetworkError(t *testing.T) {
	pusher := &fakePusher{respond: func(*apns2.Notification) (*apns2.Response, error) {
		return nil, errors.New("connection reset")
	}}
	tr := NewTransport(pusher, "com.example.app")
	defer tr.Close()
	nextEvent(t, tr)

	tr.Transmit(&notification.Notification{}, channel.NewDevice(channel.Recipient{DeviceToken: []byte{1}}, nil))

	assert.Equal(t, channel.EventSocketError, nextEvent(t, tr).Type)
	ev := nextEvent(t, tr)
	assert.Equal(t, channel.EventTransmissionError, ev.Type)
	assert.Equal(t, channel.CodeProcessingError, ev.Code)
}

func TestTransport_Timeout(t *testing.T) {
	pusher := &fakePusher{respond: func(*apns2.Notification) (*apns2.Response, error) {
		return nil, context.DeadlineExceeded
	}}
	tr := NewTransport(pusher, "com.example.app", WithPushTimeout(time.Millisecond))
	defer tr.Close()
	nextEvent(t, tr)

	tr.Transmit(&notification.Notification{}, channel.NewDevice(channel.Recipient{DeviceToken: []byte{1}}, nil))
	assert.Equal(t, channel.EventTimeout, nextEvent(t, tr).Type)
	assert.Equal(t, channel.EventTransmissionError, nextEvent(t, tr).Type)
}

func TestTransport_Close(t *testing.T) {
	pusher := &fakePusher{respond: reply(apns2.StatusSent, "")}
	tr := NewTransport(pusher, "com.example.app")
	nextEvent(t, tr)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, channel.EventDisconnected, nextEvent(t, tr).Type)
	_, open := <-tr.Events()
	assert.False(t, open)

	tr.Transmit(&notification.Notification{}, channel.NewDevice(channel.Recipient{DeviceToken: []byte{1}}, nil))
	assert.Empty(t, pusher.requests)
}

func TestConvert(t *testing.T) {
	badge := 3
	expiry := int64(1700000000)
	d := channel.NewDevice(channel.Recipient{DeviceToken: []byte{0x01, 0xff}}, nil)

	t.Run("alert", func(t *testing.T) {
		n := &notification.Notification{
			Alert:    "hello",
			Badge:    &badge,
			Sound:    "default",
			Category: "MESSAGE",
			Expiry:   &expiry,
			Payload:  map[string]any{"thread": "t1"},
		}
		req := Convert(n, d, "com.example.app")
		assert.Equal(t, "01ff", req.DeviceToken)
		assert.Equal(t, apns2.PriorityHigh, req.Priority)
		assert.Equal(t, time.Unix(expiry, 0), req.Expiration)

		body, err := json.Marshal(req.Payload)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))
		aps := decoded["aps"].(map[string]any)
		assert.Equal(t, "hello", aps["alert"])
		assert.EqualValues(t, 3, aps["badge"])
		assert.Equal(t, "default", aps["sound"])
		assert.Equal(t, "MESSAGE", aps["category"])
		assert.NotContains(t, aps, "content-available")
		assert.Equal(t, "t1", decoded["thread"])
	})

	t.Run("background", func(t *testing.T) {
		n := &notification.Notification{NewsstandAvailable: true}
		req := Convert(n, d, "com.example.app")
		assert.Equal(t, apns2.PushTypeBackground, req.PushType)
		assert.Equal(t, apns2.PriorityLow, req.Priority)
		assert.True(t, req.Expiration.IsZero())

		body, err := json.Marshal(req.Payload)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"content-available":1`)
	})
}

func writeCredentials(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Apple Push Services: com.example.app"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.p8")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestNewClient(t *testing.T) {
	certPath, keyPath := writeCredentials(t)

	t.Run("cert and key, production", func(t *testing.T) {
		client, err := NewClient(channel.Config{BundleID: "a", Production: true, Cert: certPath, Key: keyPath})
		require.NoError(t, err)
		assert.Equal(t, apns2.HostProduction, client.Host)
	})

	t.Run("auth key, development", func(t *testing.T) {
		client, err := NewClient(channel.Config{BundleID: "a", AuthKey: keyPath, KeyID: "KEY", TeamID: "TEAM"})
		require.NoError(t, err)
		assert.Equal(t, apns2.HostDevelopment, client.Host)
		require.NotNil(t, client.Token)
		assert.Equal(t, "TEAM", client.Token.TeamID)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewClient(channel.Config{BundleID: "a", Pfx: filepath.Join(t.TempDir(), "none.p12")})
		assert.True(t, apnserrors.IsCode(err, apnserrors.ErrTransport), "got %v", err)
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := NewClient(channel.Config{BundleID: "a"})
		assert.True(t, apnserrors.IsCode(err, apnserrors.ErrMisconfigured), "got %v", err)
	})
}

func TestDialer(t *testing.T) {
	certPath, keyPath := writeCredentials(t)
	dial := Dialer(WithConcurrency(2))

	tr, err := dial(channel.Config{BundleID: "a", Cert: certPath, Key: keyPath})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	_, err = dial(channel.Config{BundleID: "a"})
	assert.Error(t, err)
}
