package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver

	persistenceClient any
	repositoryFactory any

	orderStore      OrderStore
	resetTokenStore ResetTokenStore
	accountStore    AccountStore
	catalogStore    CatalogStore
	shelfStore      ShelfStore

	identityResolver IdentityResolver
	credentialIssuer CredentialIssuer

	secretProvider SecretProvider
	mailer         Mailer
	now            func() time.Time
}

type Option func(*serviceBuilder)

func defaultServiceBuilder(cfg Config) serviceBuilder {
	return serviceBuilder{runtimeConfig: cfg}
}

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithOrderStore(store OrderStore) Option {
	return func(b *serviceBuilder) {
		b.orderStore = store
	}
}

func WithResetTokenStore(store ResetTokenStore) Option {
	return func(b *serviceBuilder) {
		b.resetTokenStore = store
	}
}

func WithAccountStore(store AccountStore) Option {
	return func(b *serviceBuilder) {
		b.accountStore = store
	}
}

func WithCatalogStore(store CatalogStore) Option {
	return func(b *serviceBuilder) {
		b.catalogStore = store
	}
}

func WithShelfStore(store ShelfStore) Option {
	return func(b *serviceBuilder) {
		b.shelfStore = store
	}
}

func WithIdentityResolver(resolver IdentityResolver) Option {
	return func(b *serviceBuilder) {
		b.identityResolver = resolver
	}
}

func WithCredentialIssuer(issuer CredentialIssuer) Option {
	return func(b *serviceBuilder) {
		b.credentialIssuer = issuer
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithMailer(mailer Mailer) Option {
	return func(b *serviceBuilder) {
		b.mailer = mailer
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.WebhookSecret) != "" {
		layer["webhook_secret"] = cfg.WebhookSecret
	}
	if includeZero || strings.TrimSpace(cfg.DeploymentSecret) != "" {
		layer["deployment_secret"] = cfg.DeploymentSecret
	}
	if includeZero || strings.TrimSpace(cfg.BaseURL) != "" {
		layer["base_url"] = cfg.BaseURL
	}
	if includeZero || len(cfg.SupportedLocales) > 0 {
		layer["supported_locales"] = append([]string(nil), cfg.SupportedLocales...)
	}
	if includeZero ||
		strings.TrimSpace(cfg.Defaults.Role) != "" ||
		strings.TrimSpace(cfg.Defaults.Visibility) != "" ||
		strings.TrimSpace(cfg.Defaults.Locale) != "" {
		layer["defaults"] = map[string]any{
			"role":       cfg.Defaults.Role,
			"visibility": cfg.Defaults.Visibility,
			"locale":     cfg.Defaults.Locale,
		}
	}
	if includeZero || cfg.Tokens.ResetTTL > 0 || cfg.Tokens.Retention > 0 {
		layer["tokens"] = map[string]any{
			"reset_ttl": cfg.Tokens.ResetTTL,
			"retention": cfg.Tokens.Retention,
		}
	}
	if includeZero || strings.TrimSpace(cfg.Mail.From) != "" {
		layer["mail"] = map[string]any{
			"from": cfg.Mail.From,
		}
	}
	return layer
}
