package verification

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyaltydesk/pkg/config"
	"loyaltydesk/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// unreachableRedis returns a client pointing nowhere. CheckCode tolerates a
// failing consume, so demo verification works without a redis instance.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

func newTestService() *Service {
	return &Service{
		config: &config.Config{},
		redis:  unreachableRedis(),
		sender: NewDemoSender(),
	}
}

func TestSendCodeRejectsMalformedPhone(t *testing.T) {
	svc := newTestService()

	for _, phone := range []string{"", "abc", "12", "+1 555 000", "555-0000"} {
		err := svc.SendCode(context.Background(), "tenant-1", phone)
		require.Error(t, err, "phone=%q", phone)
		require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
	}
}

func TestCheckCodeAcceptsAnyWellFormedCode(t *testing.T) {
	svc := newTestService()

	for _, code := range []string{"0000", "1234", "9999"} {
		err := svc.CheckCode(context.Background(), "tenant-1", "+15550001111", code)
		require.NoError(t, err, "code=%q", code)
	}
}

func TestCheckCodeRejectsMalformedCode(t *testing.T) {
	svc := newTestService()

	for _, code := range []string{"", "12", "12345", "abcd", "12a4"} {
		err := svc.CheckCode(context.Background(), "tenant-1", "+15550001111", code)
		require.Error(t, err, "code=%q", code)
		require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
	}
}

func TestCheckCodeRejectsMalformedPhone(t *testing.T) {
	svc := newTestService()

	err := svc.CheckCode(context.Background(), "tenant-1", "not-a-phone", "1234")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}
