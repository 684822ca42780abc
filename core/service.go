package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the fulfillment orchestrator: the only component with
// cross-cutting side effects. It drives the order ledger, identity resolver,
// credential issuer, and mail queue per webhook event.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper

	persistenceClient any
	repositoryFactory any

	orderStore      OrderStore
	resetTokenStore ResetTokenStore
	accountStore    AccountStore
	catalogStore    CatalogStore
	shelfStore      ShelfStore

	identityResolver IdentityResolver
	credentialIssuer CredentialIssuer
	secretProvider   SecretProvider
	mailer           Mailer
	now              func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	OrderStore        OrderStore
	ResetTokenStore   ResetTokenStore
	AccountStore      AccountStore
	CatalogStore      CatalogStore
	ShelfStore        ShelfStore
	IdentityResolver  IdentityResolver
	CredentialIssuer  CredentialIssuer
	SecretProvider    SecretProvider
	Mailer            Mailer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("fulfillment", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("fulfillment"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.mailer == nil {
		builder.mailer = NopMailer{}
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil && builder.orderStore == nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				adoptStores(&builder, storeProvider)
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			adoptStores(&builder, storeProvider)
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		orderStore:        builder.orderStore,
		resetTokenStore:   builder.resetTokenStore,
		accountStore:      builder.accountStore,
		catalogStore:      builder.catalogStore,
		shelfStore:        builder.shelfStore,
		identityResolver:  builder.identityResolver,
		credentialIssuer:  builder.credentialIssuer,
		secretProvider:    builder.secretProvider,
		mailer:            builder.mailer,
		now:               builder.now,
	}, nil
}

func adoptStores(builder *serviceBuilder, provider StoreProvider) {
	if builder.orderStore == nil {
		builder.orderStore = provider.OrderStore()
	}
	if builder.resetTokenStore == nil {
		builder.resetTokenStore = provider.ResetTokenStore()
	}
	if builder.accountStore == nil {
		builder.accountStore = provider.AccountStore()
	}
	if builder.catalogStore == nil {
		builder.catalogStore = provider.CatalogStore()
	}
	if builder.shelfStore == nil {
		builder.shelfStore = provider.ShelfStore()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		OrderStore:        s.orderStore,
		ResetTokenStore:   s.resetTokenStore,
		AccountStore:      s.accountStore,
		CatalogStore:      s.catalogStore,
		ShelfStore:        s.shelfStore,
		IdentityResolver:  s.identityResolver,
		CredentialIssuer:  s.credentialIssuer,
		SecretProvider:    s.secretProvider,
		Mailer:            s.mailer,
	}
}

// WireResolvers attaches the identity resolver and credential issuer after
// construction. Both depend on the service's stores, so the root package
// builds them second.
func (s *Service) WireResolvers(resolver IdentityResolver, issuer CredentialIssuer) {
	if s == nil {
		return
	}
	if resolver != nil {
		s.identityResolver = resolver
	}
	if issuer != nil {
		s.credentialIssuer = issuer
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

type deliveryEnvelope struct {
	Event string `json:"event"`
}

// HandleDelivery routes one verified webhook delivery. Signature verification
// happens upstream in the webhooks processor; everything that fails past that
// point is classified, never silently dropped.
func (s *Service) HandleDelivery(ctx context.Context, req InboundRequest) (receipt DeliveryReceipt, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["outcome"] = string(receipt.Outcome)
		s.observeOperation(ctx, startedAt, "handle_delivery", err, fields)
	}()

	if s == nil || s.orderStore == nil || s.identityResolver == nil {
		receipt = errorReceipt()
		err = s.mapError(fmt.Errorf("core: orchestrator requires order store and identity resolver"))
		return receipt, err
	}

	envelope := deliveryEnvelope{}
	if unmarshalErr := json.Unmarshal(req.Body, &envelope); unmarshalErr != nil {
		receipt = rejectedReceipt()
		err = s.mapError(goerrors.New("core: malformed webhook body", goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
		return receipt, err
	}
	event := strings.TrimSpace(strings.ToUpper(envelope.Event))
	fields["event"] = event

	switch event {
	case EventProductChanged:
		return s.handleProductChanged(ctx, req.Body, fields)
	case EventPaymentChanged:
		return s.handlePaymentChanged(ctx, req.Body, fields)
	default:
		// Other storefront event types (order-deleted, stock-changed, ...)
		// are accepted and never acted on.
		receipt = DeliveryReceipt{Outcome: OutcomeIgnored, StatusCode: http.StatusOK}
		return receipt, nil
	}
}

func (s *Service) handleProductChanged(ctx context.Context, body []byte, fields map[string]any) (DeliveryReceipt, error) {
	event := ProductEvent{}
	if err := json.Unmarshal(body, &event); err != nil {
		return rejectedReceipt(), s.mapError(goerrors.New("core: malformed product payload", goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
	}
	handle := NormalizeHandle(event.ProductHandle)
	if handle == "" {
		return rejectedReceipt(), s.mapError(goerrors.New("core: product handle is required", goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
	}
	fields["product_handle"] = handle

	updated, err := s.orderStore.UpdateCategoryForHandle(ctx, handle, strings.TrimSpace(event.CategoryHandle))
	if err != nil {
		return s.classifyFailure(err)
	}
	fields["orders_updated"] = updated
	return DeliveryReceipt{Outcome: OutcomeOK, StatusCode: http.StatusOK}, nil
}

func (s *Service) handlePaymentChanged(ctx context.Context, body []byte, fields map[string]any) (DeliveryReceipt, error) {
	event := PaymentEvent{}
	if err := json.Unmarshal(body, &event); err != nil {
		return rejectedReceipt(), s.mapError(goerrors.New("core: malformed payment payload", goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
	}
	if !strings.EqualFold(strings.TrimSpace(event.PaymentStatus), PaymentStatusPaid) {
		return DeliveryReceipt{Outcome: OutcomeIgnored, StatusCode: http.StatusOK}, nil
	}

	email := NormalizeEmail(event.Email)
	if email == "" {
		return rejectedReceipt(), s.mapError(goerrors.New("core: buyer email is required", goerrors.CategoryBadInput).
			WithTextCode(ErrorEmailMissing))
	}
	if len(event.Cart) == 0 {
		return rejectedReceipt(), s.mapError(goerrors.New("core: cart is required for a paid order", goerrors.CategoryBadInput).
			WithTextCode(ErrorBadInput))
	}
	fields["order_id"] = strings.TrimSpace(event.OrderID)

	return s.fulfill(ctx, email, event, fields)
}

type fulfilledLine struct {
	order Order
	book  *BookRef
}

func (s *Service) fulfill(ctx context.Context, email string, event PaymentEvent, fields map[string]any) (DeliveryReceipt, error) {
	receipt := DeliveryReceipt{Outcome: OutcomeOK, StatusCode: http.StatusOK}

	handles := make([]string, 0, len(event.Cart))
	for _, item := range event.Cart {
		if handle := NormalizeHandle(item.ProductHandle); handle != "" {
			handles = append(handles, handle)
		}
	}
	books, err := s.identityResolver.LookupBooksByHandles(ctx, handles)
	if err != nil {
		return s.classifyFailure(err)
	}

	lines := make([]fulfilledLine, 0, len(handles))
	for _, handle := range handles {
		line := fulfilledLine{}
		if book, ok := books[handle]; ok {
			resolved := book
			line.book = &resolved
		} else {
			// Unresolved handles are recorded and reported, never fatal.
			receipt.UnresolvedHandles = append(receipt.UnresolvedHandles, handle)
		}

		order, createErr := s.orderStore.Create(ctx, email, handle)
		switch {
		case createErr == nil:
			receipt.OrdersCreated++
		case errors.Is(createErr, ErrOrderExists):
			order, createErr = s.orderStore.GetByEmailHandle(ctx, email, handle)
			if createErr != nil {
				return s.classifyFailure(createErr)
			}
		default:
			return s.classifyFailure(createErr)
		}
		line.order = order
		lines = append(lines, line)
	}

	account, created, tempPassword, err := s.resolveAccount(ctx, email, event.Name)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Account provisioning happens elsewhere; deliveries for unknown
			// buyers are an expected non-fatal outcome.
			receipt.Outcome = OutcomeOK
			return receipt, nil
		}
		return s.classifyFailure(err)
	}
	receipt.AccountCreated = created

	bookIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		links := OrderLinks{}
		if line.order.LinkedUserID == nil {
			userID := account.ID
			links.UserID = &userID
		}
		if line.book != nil && line.order.LinkedBookID == nil {
			bookID := line.book.ID
			links.BookID = &bookID
		}
		if line.book != nil {
			bookIDs = append(bookIDs, line.book.ID)
		}
		if links.UserID != nil || links.BookID != nil {
			if linkErr := s.orderStore.UpdateLinks(ctx, line.order.ID, links); linkErr != nil {
				return s.classifyFailure(linkErr)
			}
		}
	}

	locale := s.resolveLocale(event, account, lines)

	if created {
		if s.shelfStore != nil {
			if shelfErr := s.shelfStore.EnsureWishlist(ctx, account.ID, locale); shelfErr != nil {
				return s.classifyFailure(shelfErr)
			}
		}
		if s.credentialIssuer != nil && tempPassword != "" {
			token, issueErr := s.credentialIssuer.IssueInitialToken(ctx, email, tempPassword, bookIDs)
			if issueErr != nil {
				return s.classifyFailure(issueErr)
			}
			receipt.TokenIssued = true

			if s.anyUndeliveredLine(lines) {
				receipt.MailEnqueued = s.enqueueNotification(ctx, email, event.Name, locale, token, lines)
			}
		}
	}

	return receipt, nil
}

// resolveAccount maps the buyer email to an account, creating one on demand.
// The returned plaintext password is non-empty only when this call created
// the account.
func (s *Service) resolveAccount(ctx context.Context, email string, name string) (UserInfo, bool, string, error) {
	users, err := s.identityResolver.LookupUsersByEmails(ctx, []string{email})
	if err != nil {
		return UserInfo{}, false, "", err
	}
	if account, ok := users[email]; ok {
		return account, false, "", nil
	}

	account, tempPassword, err := s.identityResolver.CreateUserForEmail(ctx, email, name)
	if err == nil {
		return account, true, tempPassword, nil
	}
	if !errors.Is(err, ErrUserExists) {
		return UserInfo{}, false, "", err
	}

	// Lost the creation race to a concurrent delivery; the winner provisions.
	users, err = s.identityResolver.LookupUsersByEmails(ctx, []string{email})
	if err != nil {
		return UserInfo{}, false, "", err
	}
	if account, ok := users[email]; ok {
		return account, false, "", nil
	}
	return UserInfo{}, false, "", ErrUserNotFound
}

// Locale priority: order-origin hint, existing account locale, per-book
// language, deployment default.
func (s *Service) resolveLocale(event PaymentEvent, account UserInfo, lines []fulfilledLine) string {
	candidates := []string{
		LocaleHintFromOrigin(event.OriginURL),
		account.Locale,
	}
	for _, line := range lines {
		if line.book != nil && strings.TrimSpace(line.book.LanguageCode) != "" {
			candidates = append(candidates, line.book.LanguageCode)
			break
		}
	}
	candidates = append(candidates, s.config.Defaults.Locale)
	return ResolveLocale(s.config.SupportedLocales, candidates...)
}

// A line counts as undelivered when the handle resolved to a book but the
// stored order had no book link before this delivery. That covers fresh
// orders and rows left behind by a run that failed before provisioning.
func (s *Service) anyUndeliveredLine(lines []fulfilledLine) bool {
	for _, line := range lines {
		if line.book != nil && line.order.LinkedBookID == nil {
			return true
		}
	}
	return false
}

func (s *Service) enqueueNotification(
	ctx context.Context,
	email string,
	name string,
	locale string,
	token string,
	lines []fulfilledLine,
) bool {
	if s.mailer == nil {
		return false
	}
	// The default no-op mailer accepts everything; the receipt must not
	// claim a notification nobody will receive.
	if _, nop := s.mailer.(NopMailer); nop {
		return false
	}
	notification := PurchaseNotification{
		Email:    email,
		Name:     strings.TrimSpace(name),
		Locale:   locale,
		AuthLink: token,
	}
	for _, line := range lines {
		if line.book == nil || line.order.LinkedBookID != nil {
			continue
		}
		notification.Books = append(notification.Books, BookLink{
			BookID:    line.book.ID,
			Title:     line.book.Title,
			ReaderURL: s.readerURL(line.book.ID),
		})
	}
	if len(notification.Books) == 0 {
		return false
	}
	if err := s.mailer.EnqueuePurchaseNotification(ctx, notification); err != nil {
		// Fire and forget: reported, never unwinds committed mutations.
		s.logError(ctx, "purchase notification enqueue failed", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return false
	}
	return true
}

func (s *Service) readerURL(bookID int64) string {
	base := strings.TrimRight(strings.TrimSpace(s.config.BaseURL), "/")
	if base == "" {
		return fmt.Sprintf("/read/%d", bookID)
	}
	return fmt.Sprintf("%s/read/%d", base, bookID)
}

// classifyFailure separates backend unavailability (retriable, 503) from
// validation failures (400) and everything else (500) so the storefront does
// not endlessly retry malformed payloads.
func (s *Service) classifyFailure(err error) (DeliveryReceipt, error) {
	mapped := s.mapError(err)
	var rich *goerrors.Error
	if goerrors.As(mapped, &rich) {
		switch rich.Category {
		case goerrors.CategoryExternal:
			return DeliveryReceipt{Outcome: OutcomeRetry, StatusCode: http.StatusServiceUnavailable}, mapped
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return rejectedReceipt(), mapped
		}
	}
	return errorReceipt(), mapped
}

func rejectedReceipt() DeliveryReceipt {
	return DeliveryReceipt{Outcome: OutcomeRejected, StatusCode: http.StatusBadRequest}
}

func errorReceipt() DeliveryReceipt {
	return DeliveryReceipt{Outcome: OutcomeError, StatusCode: http.StatusInternalServerError}
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// GetOrder is a point lookup for the admin surface.
func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	if s == nil || s.orderStore == nil {
		return Order{}, s.mapError(fmt.Errorf("core: order store is required"))
	}
	order, err := s.orderStore.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Order{}, s.mapError(err)
	}
	return order, nil
}

func (s *Service) ListOrdersForUser(ctx context.Context, filter OrderFilter) ([]Order, error) {
	if s == nil || s.orderStore == nil {
		return nil, s.mapError(fmt.Errorf("core: order store is required"))
	}
	filter.Email = NormalizeEmail(filter.Email)
	orders, err := s.orderStore.ListForUser(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return orders, nil
}

// DeleteOrder removes an order row. Orders are deleted only by admin action.
func (s *Service) DeleteOrder(ctx context.Context, orderID string, requestedBy UserInfo) (err error) {
	startedAt := s.clock()
	fields := map[string]any{"order_id": strings.TrimSpace(orderID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_order", err, fields)
	}()

	if s == nil || s.orderStore == nil {
		err = s.mapError(fmt.Errorf("core: order store is required"))
		return err
	}
	if !requestedBy.IsAdmin() {
		err = s.mapError(goerrors.New("core: order deletion requires an admin account", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden))
		return err
	}
	if deleteErr := s.orderStore.Delete(ctx, strings.TrimSpace(orderID)); deleteErr != nil {
		err = s.mapError(deleteErr)
		return err
	}
	return nil
}

// IssueResetToken mints a reset-type login link for an existing account,
// embedding the caller's linked book ids for deep links.
func (s *Service) IssueResetToken(ctx context.Context, email string) (token string, err error) {
	startedAt := s.clock()
	email = NormalizeEmail(email)
	fields := map[string]any{"email": email}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue_reset_token", err, fields)
	}()

	if s == nil || s.credentialIssuer == nil || s.orderStore == nil {
		err = s.mapError(fmt.Errorf("core: credential issuer is required"))
		return "", err
	}
	orders, listErr := s.orderStore.ListForUser(ctx, OrderFilter{Email: email})
	if listErr != nil {
		err = s.mapError(listErr)
		return "", err
	}
	bookIDs := make([]int64, 0, len(orders))
	for _, order := range orders {
		if order.LinkedBookID != nil {
			bookIDs = append(bookIDs, *order.LinkedBookID)
		}
	}
	token, issueErr := s.credentialIssuer.IssueResetToken(ctx, email, bookIDs)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return "", err
	}
	return token, nil
}

func (s *Service) ResolvePendingReset(ctx context.Context, email string, token string) (AuthLinkPayload, error) {
	if s == nil || s.credentialIssuer == nil {
		return AuthLinkPayload{}, s.mapError(fmt.Errorf("core: credential issuer is required"))
	}
	payload, err := s.credentialIssuer.ResolvePendingReset(ctx, NormalizeEmail(email), token)
	if err != nil {
		return AuthLinkPayload{}, s.mapError(err)
	}
	return payload, nil
}

func (s *Service) CompletePasswordChange(ctx context.Context, email string, newPassword string) (err error) {
	startedAt := s.clock()
	email = NormalizeEmail(email)
	fields := map[string]any{"email": email}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_password_change", err, fields)
	}()

	if s == nil || s.credentialIssuer == nil {
		err = s.mapError(fmt.Errorf("core: credential issuer is required"))
		return err
	}
	if changeErr := s.credentialIssuer.CompletePasswordChange(ctx, email, newPassword); changeErr != nil {
		err = s.mapError(changeErr)
		return err
	}
	return nil
}
