package channel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/channel/channeltest"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

func newPool(t *testing.T, cfgs ...channel.Config) (*channel.Pool, *channeltest.Dialer) {
	t.Helper()
	dialer := channeltest.NewDialer()
	pool, err := channel.NewPool(dialer.Dial, cfgs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool, dialer
}

func TestNewPool_SortsByPriority(t *testing.T) {
	pool, _ := newPool(t,
		channel.Config{BundleID: "sandbox.a"},
		channel.Config{BundleID: "prod.b", Production: true},
		channel.Config{BundleID: "sandbox.c"},
		channel.Config{BundleID: "prod.d", Production: true},
	)

	require.Equal(t, 4, pool.Len())
	var bundles []string
	for i, c := range pool.Channels() {
		assert.Equal(t, i, c.Index())
		if i > 0 {
			assert.LessOrEqual(t, pool.At(i-1).Priority(), c.Priority())
		}
		bundles = append(bundles, c.BundleID())
	}
	assert.Equal(t, []string{"prod.b", "prod.d", "sandbox.a", "sandbox.c"}, bundles)
	assert.Equal(t, 0, pool.At(0).Priority())
	assert.True(t, pool.At(1).Production())
	assert.Equal(t, 1, pool.At(2).Priority())
}

func TestNewPool_SingleConfig(t *testing.T) {
	pool, dialer := newPool(t, channel.Config{BundleID: "com.example.app", Cert: "prodCert.pem", Key: "prodKey.pem"})

	require.Equal(t, 1, pool.Len())
	assert.Equal(t, 0, pool.At(0).Index())
	assert.Equal(t, 1, pool.At(0).Priority())
	require.Len(t, dialer.Configs, 1)
	assert.Equal(t, "prodCert.pem", dialer.Configs[0].Cert, "transport settings are forwarded untouched")
}

func TestNewPool_Misconfigured(t *testing.T) {
	t.Run("missing bundle id", func(t *testing.T) {
		dialer := channeltest.NewDialer()
		_, err := channel.NewPool(dialer.Dial, []channel.Config{
			{BundleID: "com.example.app"},
			{Production: true, Cert: "prodCert.pem", Passphrase: "secret"},
		})
		require.Error(t, err)
		assert.True(t, apnserrors.IsCode(err, apnserrors.ErrMisconfigured))
		assert.Contains(t, err.Error(), "prodCert.pem")
		assert.NotContains(t, err.Error(), "secret")
		assert.Empty(t, dialer.Configs, "nothing is dialed for an invalid configuration")
	})

	t.Run("dial failure closes dialed transports", func(t *testing.T) {
		first := channeltest.New(nil)
		calls := 0
		dial := func(cfg channel.Config) (channel.Transport, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("certificate expired")
			}
			return first, nil
		}
		_, err := channel.NewPool(dial, []channel.Config{{BundleID: "a"}, {BundleID: "b"}})
		require.Error(t, err)
		assert.True(t, apnserrors.IsCode(err, apnserrors.ErrMisconfigured))
		assert.Contains(t, err.Error(), "certificate expired")

		_, open := <-first.Events()
		assert.False(t, open, "first transport must be closed")
	})
}

func TestNewPool_Empty(t *testing.T) {
	pool, dialer := newPool(t)

	assert.Zero(t, pool.Len())
	assert.Empty(t, pool.Channels())
	assert.Empty(t, dialer.Configs)
	assert.Equal(t, []int{}, pool.Qualify(channel.Recipient{DeviceToken: []byte{0x01}}))
	assert.Equal(t, []int{}, pool.Qualify(channel.Recipient{AppIdentifier: "com.example.app"}))
}

func TestQualify(t *testing.T) {
	pool, _ := newPool(t,
		channel.Config{BundleID: "bundleId"},
		channel.Config{BundleID: "bundleIdAgain", Production: true},
		channel.Config{BundleID: "bundleId", Production: true},
	)
	// sorted: bundleIdAgain(0), bundleId prod(1), bundleId sandbox(2)

	tests := []struct {
		name string
		r    channel.Recipient
		want []int
	}{
		{"no app identifier", channel.Recipient{DeviceToken: []byte{0x01}}, []int{0, 1, 2}},
		{"single match", channel.Recipient{AppIdentifier: "bundleIdAgain"}, []int{0}},
		{"two matches keep priority order", channel.Recipient{AppIdentifier: "bundleId"}, []int{1, 2}},
		{"no match", channel.Recipient{AppIdentifier: "invalid"}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, channel.Qualify(pool, tt.r))
			assert.Equal(t, tt.want, pool.Qualify(tt.r), "qualification is deterministic")
		})
	}
}

func TestConfig_Priority(t *testing.T) {
	assert.Equal(t, 0, channel.Config{Production: true}.Priority())
	assert.Equal(t, 1, channel.Config{}.Priority())
	assert.NoError(t, channel.Config{BundleID: "a"}.Validate())
	assert.NoError(t, channel.Config{BundleID: "  "}.Validate(), "only an empty bundle id is missing")
	assert.Error(t, channel.Config{}.Validate())
}

func TestCodeText(t *testing.T) {
	assert.Equal(t, "invalid token", channel.CodeText(channel.CodeInvalidToken))
	assert.Equal(t, "unknown", channel.CodeText(9999))
}
