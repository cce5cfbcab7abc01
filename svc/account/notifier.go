package account

import (
	"context"
	"time"

	"github.com/dmitrymomot/credkit/pkg/otp"
)

// Delivery is one code to hand to a user.
type Delivery struct {
	Email     string
	Name      string
	Code      string
	Purpose   otp.Purpose
	ExpiresIn time.Duration
}

// Notifier delivers codes out of band.
type Notifier interface {
	SendCode(ctx context.Context, d Delivery) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, d Delivery) error

func (f NotifierFunc) SendCode(ctx context.Context, d Delivery) error { return f(ctx, d) }
