//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/weappkit/server/internal/adapter/inbound/lambda"
	"github.com/weappkit/server/internal/module/payment"
	"github.com/weappkit/server/internal/shared/config"
)

// InitializeApp wires the HTTP server.
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		InfraSet,
		PaymentSet,
		AuthSet,
		wire.Struct(new(Handlers), "*"),
		NewApp,
	)
	return nil, nil, nil
}

// InitializeNotifyHandler wires the Lambda notification receiver.
func InitializeNotifyHandler(cfg *config.Config) (*lambda.NotifyHandler, func(), error) {
	wire.Build(
		InfraSet,
		ProvideGateway,
		ProvidePaymentRegistry,
		payment.NewRepository,
		payment.NewService,
		ProvideNotifyHandler,
	)
	return nil, nil, nil
}
