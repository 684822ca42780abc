package fulfillment

import (
	"github.com/goliatone/go-fulfillment/core"
	"github.com/goliatone/go-fulfillment/credentials"
	"github.com/goliatone/go-fulfillment/identity"
	"github.com/goliatone/go-fulfillment/security"
)

type Config = core.Config

type DefaultsConfig = core.DefaultsConfig

type TokenConfig = core.TokenConfig

type MailConfig = core.MailConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type OrderStore = core.OrderStore
type ResetTokenStore = core.ResetTokenStore
type AccountStore = core.AccountStore
type CatalogStore = core.CatalogStore
type ShelfStore = core.ShelfStore
type IdentityResolver = core.IdentityResolver
type CredentialIssuer = core.CredentialIssuer
type SecretProvider = core.SecretProvider
type Mailer = core.Mailer

type InboundRequest = core.InboundRequest
type DeliveryReceipt = core.DeliveryReceipt
type Order = core.Order
type OrderFilter = core.OrderFilter
type UserInfo = core.UserInfo
type BookRef = core.BookRef
type AuthLinkPayload = core.AuthLinkPayload
type CatalogState = core.CatalogState
type CatalogScope = core.CatalogScope

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithOrderStore        = core.WithOrderStore
	WithResetTokenStore   = core.WithResetTokenStore
	WithAccountStore      = core.WithAccountStore
	WithCatalogStore      = core.WithCatalogStore
	WithShelfStore        = core.WithShelfStore
	WithIdentityResolver  = core.WithIdentityResolver
	WithCredentialIssuer  = core.WithCredentialIssuer
	WithSecretProvider    = core.WithSecretProvider
	WithMailer            = core.WithMailer
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds the service and, when the stores are available, wires the
// identity resolver and credential issuer on top of them. Callers that
// inject their own resolver or issuer keep what they passed in.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	service, err := core.NewService(cfg, opts...)
	if err != nil {
		return nil, err
	}

	deps := service.Dependencies()
	if deps.IdentityResolver != nil && deps.CredentialIssuer != nil {
		return service, nil
	}
	if deps.AccountStore == nil || deps.CatalogStore == nil || deps.ResetTokenStore == nil {
		return service, nil
	}

	finalConfig := service.Config()

	resolver := deps.IdentityResolver
	if resolver == nil {
		resolver, err = identity.NewResolver(deps.AccountStore, deps.CatalogStore, identity.Config{
			DefaultRole:       finalConfig.Defaults.Role,
			DefaultVisibility: core.CatalogScope(finalConfig.Defaults.Visibility),
			DefaultLocale:     finalConfig.Defaults.Locale,
		})
		if err != nil {
			return nil, err
		}
	}

	issuer := deps.CredentialIssuer
	if issuer == nil {
		cipher := deps.SecretProvider
		if cipher == nil {
			cipher, err = security.NewLinkCipher(finalConfig.DeploymentSecret)
			if err != nil {
				return nil, err
			}
		}
		issuer, err = credentials.NewIssuer(deps.ResetTokenStore, deps.AccountStore, cipher, credentials.Config{
			ResetTTL: finalConfig.Tokens.ResetTTL,
		})
		if err != nil {
			return nil, err
		}
	}

	service.WireResolvers(resolver, issuer)
	return service, nil
}
