package channel_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/channel/channeltest"
	"github.com/kart-io/apnshub/pkg/notification"
)

type outcomes struct {
	mu  sync.Mutex
	got []channel.Outcome
}

func (o *outcomes) reply(out channel.Outcome) {
	o.mu.Lock()
	o.got = append(o.got, out)
	o.mu.Unlock()
}

func (o *outcomes) list() []channel.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]channel.Outcome(nil), o.got...)
}

func TestChannel_RoutesOutcomes(t *testing.T) {
	sandbox := channeltest.New(channeltest.Fail(channel.CodeProcessingError))
	prod := channeltest.New(channeltest.Succeed())
	dialer := channeltest.NewDialer(sandbox, prod)

	pool, err := channel.NewPool(dialer.Dial, []channel.Config{
		{BundleID: "com.example.app"},
		{BundleID: "com.example.app", Production: true},
	})
	require.NoError(t, err)
	defer pool.Close()

	n := &notification.Notification{Alert: "hi"}
	var got outcomes
	d := channel.NewDevice(channel.Recipient{DeviceToken: []byte{0xab}}, got.reply)

	pool.At(0).Transmit(n, d)
	pool.At(1).Transmit(n, d)

	require.Eventually(t, func() bool { return len(got.list()) == 2 }, time.Second, 5*time.Millisecond)

	byChannel := map[int]channel.Outcome{}
	for _, o := range got.list() {
		byChannel[o.Channel] = o
	}
	assert.Equal(t, channel.OutcomeTransmitted, byChannel[0].Kind, "production channel sorts first")
	assert.Same(t, n, byChannel[0].Notification)
	assert.Equal(t, channel.OutcomeTransmissionError, byChannel[1].Kind)
	assert.Equal(t, channel.CodeProcessingError, byChannel[1].Code)
	assert.Same(t, d, byChannel[1].Device)
	assert.Equal(t, "ab", d.TokenHex())
}

func TestChannel_IgnoresErrorsWithoutDelivery(t *testing.T) {
	tr := channeltest.New(nil)
	var (
		mu   sync.Mutex
		seen []channel.EventType
	)
	hook := func(c *channel.Channel, ev channel.Event) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	}
	pool, err := channel.NewPool(channeltest.NewDialer(tr).Dial,
		[]channel.Config{{BundleID: "a"}}, channel.WithEventHook(hook))
	require.NoError(t, err)

	var got outcomes
	d := channel.NewDevice(channel.Recipient{}, got.reply)

	tr.Emit(channel.Event{Type: channel.EventConnected})
	tr.Emit(channel.Event{Type: channel.EventTransmissionError, Code: 8, Device: d})
	tr.Emit(channel.Event{Type: channel.EventTransmissionError, Code: 8, Notification: &notification.Notification{}})
	tr.Emit(channel.Event{Type: channel.EventTimeout})

	require.NoError(t, pool.Close())

	assert.Empty(t, got.list())
	assert.Equal(t, []channel.EventType{
		channel.EventConnected,
		channel.EventTransmissionError,
		channel.EventTransmissionError,
		channel.EventTimeout,
	}, seen)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "socket_error", channel.EventSocketError.String())
	assert.Equal(t, "unknown", channel.EventType(99).String())
}
