package verification

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a verification message to a phone number. The demo sender
// only logs; a real SMS gateway slots in behind the same interface.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

type demoSender struct{}

func NewDemoSender() Sender {
	return &demoSender{}
}

func (demoSender) Send(_ context.Context, phone, message string) error {
	zap.L().Info("sms (demo)",
		zap.String("phone", phone),
		zap.String("message", message),
	)
	return nil
}
