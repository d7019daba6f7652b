package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/channel/channeltest"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/notification"
	"github.com/kart-io/apnshub/pkg/tokenstore"
)

const bundle = "com.example.app"

func silentPool(t *testing.T, n int) (*channel.Pool, *channeltest.Dialer) {
	t.Helper()
	cfgs := make([]channel.Config, n)
	ts := make([]*channeltest.Transport, n)
	for i := range cfgs {
		cfgs[i] = channel.Config{BundleID: bundle, Production: true}
		ts[i] = channeltest.New(channeltest.Silent())
	}
	dialer := channeltest.NewDialer(ts...)
	pool, err := channel.NewPool(dialer.Dial, cfgs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool, dialer
}

func TestHandleTransmissionError_OneHopPerEvent(t *testing.T) {
	pool, dialer := silentPool(t, 3)
	store := tokenstore.NewMemoryStore(0)
	d := New(pool, WithTokenStore(store))
	ctx := context.Background()

	n := &notification.Notification{}
	h := newDeliveryHandle(channel.Recipient{DeviceToken: []byte{0xab, 0xcd}, AppIdentifier: bundle}, n, 0)

	_, done := d.handleTransmissionError(ctx, h, channel.CodeInvalidToken, n, h.Device())
	assert.False(t, done)
	assert.Equal(t, 1, h.Current())
	assert.Equal(t, 1, dialer.Transport(1).Count())
	assert.Zero(t, dialer.Transport(2).Count())

	_, done = d.handleTransmissionError(ctx, h, channel.CodeInvalidToken, n, h.Device())
	assert.False(t, done)
	assert.Equal(t, 2, h.Current())
	assert.Equal(t, 1, dialer.Transport(2).Count())

	res, done := d.handleTransmissionError(ctx, h, channel.CodeInvalidToken, n, h.Device())
	require.True(t, done)
	assert.True(t, h.Resolved())
	assert.Equal(t, 2, h.Current())
	assert.False(t, res.Transmitted)
	assert.Equal(t, "no valid connection for abcd", res.Error)
	assert.Equal(t, channel.CodeInvalidToken, res.Code)
	assert.Equal(t, channel.CodeInvalidToken, res.Status)
	assert.Equal(t, 2, res.Channel)
	assert.Equal(t, apnserrors.ErrTransmission, res.ErrorCode)
	assert.False(t, res.Retryable, "invalid on every channel")
	assert.Equal(t, res, h.Result())
	assert.Zero(t, dialer.Transport(0).Count(), "failover never goes back up the list")

	entry, err := store.Get(ctx, "abcd")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, bundle, entry.BundleID)
}

func TestHandleTransmissionError_MixedCodesDoNotMarkToken(t *testing.T) {
	pool, _ := silentPool(t, 2)
	store := tokenstore.NewMemoryStore(0)
	d := New(pool, WithTokenStore(store))
	ctx := context.Background()
	n := &notification.Notification{}
	h := newDeliveryHandle(channel.Recipient{DeviceToken: []byte{0xaa}}, n, 0)

	_, done := d.handleTransmissionError(ctx, h, channel.CodeProcessingError, n, h.Device())
	require.False(t, done)
	res, done := d.handleTransmissionError(ctx, h, channel.CodeInvalidToken, n, h.Device())
	require.True(t, done)

	assert.Equal(t, channel.CodeInvalidToken, res.Code)
	assert.True(t, res.Retryable)
	entry, err := store.Get(ctx, "aa")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestHandleTransmissionError_MissingDeliveryIsNoop(t *testing.T) {
	pool, dialer := silentPool(t, 2)
	d := New(pool)
	n := &notification.Notification{}
	h := newDeliveryHandle(channel.Recipient{DeviceToken: []byte{1}}, n, 0)

	_, done := d.handleTransmissionError(context.Background(), h, 1, nil, h.Device())
	assert.False(t, done)
	_, done = d.handleTransmissionError(context.Background(), h, 1, n, nil)
	assert.False(t, done)

	assert.Equal(t, 0, h.Current())
	assert.False(t, h.Resolved())
	assert.Zero(t, dialer.Transport(1).Count())
}

func TestHandleTransmissionError_CurrentNotEligible(t *testing.T) {
	pool, dialer := silentPool(t, 2)
	d := New(pool)
	n := &notification.Notification{}
	h := newDeliveryHandle(channel.Recipient{DeviceToken: []byte{1}, AppIdentifier: "com.other.app"}, n, 0)

	res, done := d.handleTransmissionError(context.Background(), h, channel.CodeShutdown, n, h.Device())
	require.True(t, done)
	assert.Equal(t, "no valid connection for 01", res.Error)
	assert.Equal(t, channel.CodeShutdown, res.Status)
	assert.Zero(t, dialer.Transport(1).Count())
}

func TestHandleOutcome_IgnoresStaleChannel(t *testing.T) {
	pool, dialer := silentPool(t, 3)
	d := New(pool)
	ctx := context.Background()
	n := &notification.Notification{}
	h := newDeliveryHandle(channel.Recipient{DeviceToken: []byte{1}}, n, 1)

	_, done := d.handleOutcome(ctx, h, channel.Outcome{
		Kind: channel.OutcomeTransmissionError, Channel: 0, Code: 1, Notification: n, Device: h.Device(),
	})
	assert.False(t, done)
	assert.Equal(t, 1, h.Current())
	assert.Zero(t, dialer.Transport(2).Count())

	res, done := d.handleOutcome(ctx, h, channel.Outcome{
		Kind: channel.OutcomeTransmitted, Channel: 1, Notification: n, Device: h.Device(),
	})
	require.True(t, done)
	assert.True(t, res.Transmitted)
	assert.Equal(t, 1, res.Channel)
	assert.Equal(t, bundle, res.BundleID)
}

func TestDeliveryHandle_DropsAfterResolve(t *testing.T) {
	h := newDeliveryHandle(channel.Recipient{DeviceToken: []byte{1}}, &notification.Notification{}, 0)

	h.post(channel.Outcome{Kind: channel.OutcomeTransmitted})
	assert.Len(t, h.inbox, 1)

	for i := 0; i < inboxSize*2; i++ {
		h.post(channel.Outcome{Kind: channel.OutcomeTransmitted})
	}
	assert.Len(t, h.inbox, inboxSize, "post never blocks on a full inbox")

	<-h.inbox
	h.resolve(Result{Transmitted: true})
	h.post(channel.Outcome{Kind: channel.OutcomeTransmitted})
	assert.Len(t, h.inbox, inboxSize-1)
}
