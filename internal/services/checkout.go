package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/clients"
	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DirectCheckoutKey is the session-scoped key holding the buy-now descriptor
const DirectCheckoutKey = "direct_checkout"

// DefaultLoginPath is where unauthenticated shoppers are sent
const DefaultLoginPath = "/login"

// EntryParams identifies the checkout being opened
type EntryParams struct {
	OrderNumber string
	Owner       string
	Session     storage.Store
	ReturnPath  string
}

// PaymentParams identifies the checkout being paid
type PaymentParams struct {
	OrderNumber string
	Owner       string
	Session     storage.Store
	ReturnPath  string
}

// completionRecord marks an order whose payment succeeded
type completionRecord struct {
	Owner       string    `json:"owner"`
	CompletedAt time.Time `json:"completedAt"`
}

// originRecord remembers who started the checkout for an order and from where
type originRecord struct {
	Owner  string                `json:"owner"`
	Source models.CheckoutSource `json:"source"`
}

// CheckoutService runs the checkout state machine
type CheckoutService struct {
	orders      clients.OrderAPI
	gateway     PaymentGateway
	carts       *CartService
	records     storage.Store
	auth        auth.Authenticator
	loginPath   string
	confirmPaid bool
	inflight    *keyedMutex
	resolving   *keyedMutex
	logger      *zap.Logger
	now         func() time.Time
}

// CheckoutConfig wires the collaborators of CheckoutService
type CheckoutConfig struct {
	Orders        clients.OrderAPI
	Gateway       PaymentGateway
	Carts         *CartService
	Records       storage.Store
	Authenticator auth.Authenticator
	LoginPath     string
	// ConfirmPaid makes a successful result count only once the Order API reports the
	// order as paid. Set it for every gateway that notifies upstream.
	ConfirmPaid bool
	Logger      *zap.Logger
}

// NewCheckoutService creates a checkout service. Records keeps origin and completion
// markers and must survive restarts.
func NewCheckoutService(cfg CheckoutConfig) *CheckoutService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = auth.ContextAuthenticator{}
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &CheckoutService{
		orders:      cfg.Orders,
		gateway:     cfg.Gateway,
		carts:       cfg.Carts,
		records:     cfg.Records,
		auth:        authenticator,
		loginPath:   loginPath,
		confirmPaid: cfg.ConfirmPaid,
		inflight:    newKeyedMutex(),
		resolving:   newKeyedMutex(),
		logger:      logger,
		now:         time.Now,
	}
}

// LoginURL returns the login link that brings the shopper back to returnPath
func (s *CheckoutService) LoginURL(returnPath string) string {
	if returnPath == "" {
		return s.loginPath
	}
	return s.loginPath + "?redirect=" + url.QueryEscape(returnPath)
}

// Enter resolves exactly one order-like object for the checkout page. Calling it again
// recomputes the session from persisted inputs. On failure the returned session is in the
// error state and the error says why.
func (s *CheckoutService) Enter(ctx context.Context, p EntryParams) (*models.CheckoutSession, error) {
	orderNumber := strings.TrimSpace(p.OrderNumber)
	returnPath := p.ReturnPath
	if returnPath == "" {
		returnPath = checkoutPath(orderNumber)
	}

	if orderNumber != "" {
		return s.enterOrder(ctx, orderNumber, returnPath)
	}

	direct, err := s.loadDirect(ctx, p.Session)
	if err != nil {
		return errorSession(models.SourceDirect, "", err), err
	}
	if direct == nil {
		return errorSession("", "", models.ErrNoCheckout), models.ErrNoCheckout
	}

	return &models.CheckoutSession{
		State:   models.CheckoutReady,
		Source:  models.SourceDirect,
		Direct:  direct,
		Summary: direct.Summary(),
	}, nil
}

func (s *CheckoutService) enterOrder(ctx context.Context, orderNumber, returnPath string) (*models.CheckoutSession, error) {
	source := s.orderSource(ctx, orderNumber)

	cred, ok := s.auth.Credential(ctx)
	if !ok {
		err := &models.AuthRequiredError{LoginURL: s.LoginURL(returnPath)}
		return errorSession(source, orderNumber, err), err
	}

	order, err := s.orders.GetOrder(ctx, cred, orderNumber)
	if err != nil {
		err = s.withLoginURL(err, returnPath)
		s.logger.Warn("failed to load order for checkout",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
		return errorSession(source, orderNumber, err), err
	}

	state := models.CheckoutReady
	if order.IsPaid() || s.isCompleted(ctx, orderNumber) {
		state = models.CheckoutCompleted
	}

	return &models.CheckoutSession{
		State:       state,
		Source:      source,
		OrderNumber: order.OrderNumber,
		Order:       order,
		Summary:     models.SummaryFromOrder(order),
	}, nil
}

// SaveDirect validates and stores the buy-now descriptor in the shopper's session
func (s *CheckoutService) SaveDirect(ctx context.Context, session storage.Store, direct *models.DirectCheckout) (*models.CheckoutSession, error) {
	if err := direct.Validate(); err != nil {
		return nil, err
	}
	direct.Type = models.NormalizeItemType(direct.Type)
	direct.IdempotencyKey = ""
	direct.CreatedAt = s.now().UTC()

	if err := s.storeDirect(ctx, session, direct); err != nil {
		return nil, err
	}

	return &models.CheckoutSession{
		State:   models.CheckoutReady,
		Source:  models.SourceDirect,
		Direct:  direct,
		Summary: direct.Summary(),
	}, nil
}

// CheckoutCart creates an order from the shopper's cart. The cart is kept until the
// payment for that order succeeds.
func (s *CheckoutService) CheckoutCart(ctx context.Context, owner, returnPath string) (*models.Order, error) {
	cred, ok := s.auth.Credential(ctx)
	if !ok {
		return nil, &models.AuthRequiredError{LoginURL: s.LoginURL(returnPath)}
	}

	release, ok := s.inflight.TryLock(owner + "|cart")
	if !ok {
		return nil, models.ErrPaymentInProgress
	}
	defer release()

	cart, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, models.NewValidationError("items", "cart is empty")
	}

	req := models.OrderRequestFromCart(cart)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	order, err := s.orders.CreateOrder(ctx, cred, req, uuid.NewString())
	if err != nil {
		return nil, s.withLoginURL(err, returnPath)
	}

	if err := s.recordOrigin(ctx, order.OrderNumber, originRecord{Owner: owner, Source: models.SourceCart}); err != nil {
		return nil, err
	}

	s.logger.Info("order created from cart",
		zap.String("order_number", order.OrderNumber),
		zap.Int("lines", len(req.Items)),
		zap.Float64("total_amount", order.TotalAmount),
	)
	return order, nil
}

// InitiatePayment starts a payment for an existing order or for the buy-now descriptor.
// Without a credential it never contacts the Order or Payment API. A second call for
// the same target while the first is running fails with ErrPaymentInProgress.
func (s *CheckoutService) InitiatePayment(ctx context.Context, p PaymentParams) (*models.CheckoutSession, error) {
	orderNumber := strings.TrimSpace(p.OrderNumber)
	returnPath := p.ReturnPath
	if returnPath == "" {
		returnPath = checkoutPath(orderNumber)
	}

	cred, ok := s.auth.Credential(ctx)
	if !ok {
		err := &models.AuthRequiredError{LoginURL: s.LoginURL(returnPath)}
		session := &models.CheckoutSession{State: models.CheckoutReady, OrderNumber: orderNumber, Error: err.Error()}
		return session, err
	}

	target := orderNumber
	if target == "" {
		target = string(models.SourceDirect)
	}
	release, ok := s.inflight.TryLock(p.Owner + "|" + target)
	if !ok {
		return &models.CheckoutSession{State: models.CheckoutPaying, OrderNumber: orderNumber}, models.ErrPaymentInProgress
	}
	defer release()

	var (
		session *models.CheckoutSession
		err     error
	)
	if orderNumber == "" {
		session, err = s.orderFromDirect(ctx, cred, p.Owner, p.Session, returnPath)
	} else {
		session, err = s.payableOrder(ctx, cred, orderNumber, returnPath)
	}
	if err != nil {
		return session, err
	}

	payment, err := s.gateway.Create(ctx, cred, session.OrderNumber)
	if err != nil {
		err = s.withLoginURL(err, returnPath)
		s.logger.Warn("failed to create payment",
			zap.String("order_number", session.OrderNumber),
			zap.Error(err),
		)
		session.State = models.CheckoutFailed
		session.Error = err.Error()
		return session, err
	}

	session.State = models.CheckoutPaying
	session.Payment = payment
	session.Error = ""

	s.logger.Info("payment initiated",
		zap.String("order_number", session.OrderNumber),
		zap.String("source", string(session.Source)),
	)
	return session, nil
}

// orderFromDirect materializes an order from the buy-now descriptor. The idempotency key is
// generated once per descriptor so a retried submission cannot create a second order.
func (s *CheckoutService) orderFromDirect(ctx context.Context, cred auth.Credential, owner string, session storage.Store, returnPath string) (*models.CheckoutSession, error) {
	direct, err := s.loadDirect(ctx, session)
	if err != nil {
		return errorSession(models.SourceDirect, "", err), err
	}
	if direct == nil {
		return errorSession("", "", models.ErrNoCheckout), models.ErrNoCheckout
	}

	current := &models.CheckoutSession{
		State:   models.CheckoutReady,
		Source:  models.SourceDirect,
		Direct:  direct,
		Summary: direct.Summary(),
	}

	if err := direct.Validate(); err != nil {
		current.Error = err.Error()
		return current, err
	}

	req := direct.OrderRequest()
	if err := req.Validate(); err != nil {
		current.Error = err.Error()
		return current, err
	}

	if direct.IdempotencyKey == "" {
		direct.IdempotencyKey = uuid.NewString()
		if err := s.storeDirect(ctx, session, direct); err != nil {
			return current, err
		}
	}

	order, err := s.orders.CreateOrder(ctx, cred, req, direct.IdempotencyKey)
	if err != nil {
		err = s.withLoginURL(err, returnPath)
		current.Error = err.Error()
		return current, err
	}

	if err := s.recordOrigin(ctx, order.OrderNumber, originRecord{Owner: owner, Source: models.SourceDirect}); err != nil {
		current.Error = err.Error()
		return current, err
	}

	if err := session.Remove(ctx, DirectCheckoutKey); err != nil {
		s.logger.Warn("failed to remove direct checkout descriptor",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
	}

	s.logger.Info("order created from direct checkout",
		zap.String("order_number", order.OrderNumber),
		zap.String("ticket_id", direct.TicketID),
	)

	return &models.CheckoutSession{
		State:       models.CheckoutReady,
		Source:      models.SourceDirect,
		OrderNumber: order.OrderNumber,
		Order:       order,
		Summary:     models.SummaryFromOrder(order),
	}, nil
}

// payableOrder loads an existing order and checks it still accepts a payment. When the
// gateway reports to the Order API, the upstream status decides; a local completion
// record alone never blocks a payment.
func (s *CheckoutService) payableOrder(ctx context.Context, cred auth.Credential, orderNumber, returnPath string) (*models.CheckoutSession, error) {
	source := s.orderSource(ctx, orderNumber)

	if !s.confirmPaid && s.isCompleted(ctx, orderNumber) {
		return &models.CheckoutSession{State: models.CheckoutCompleted, Source: source, OrderNumber: orderNumber}, models.ErrOrderAlreadyPaid
	}

	order, err := s.orders.GetOrder(ctx, cred, orderNumber)
	if err != nil {
		err = s.withLoginURL(err, returnPath)
		return errorSession(source, orderNumber, err), err
	}

	session := &models.CheckoutSession{
		State:       models.CheckoutReady,
		Source:      source,
		OrderNumber: order.OrderNumber,
		Order:       order,
		Summary:     models.SummaryFromOrder(order),
	}

	switch {
	case order.IsPaid():
		session.State = models.CheckoutCompleted
		return session, models.ErrOrderAlreadyPaid
	case !order.CanBePaid():
		err := models.NewValidationError("order", "order can no longer be paid")
		session.State = models.CheckoutError
		session.Error = err.Error()
		return session, err
	}
	return session, nil
}

// Resolve applies a payment result reported back to owner. Success completes the checkout
// and clears the cart it came from; failure keeps both the order and the cart so payment
// can be retried. A completed order stays completed.
//
// A success is accepted only from the shopper who started the checkout, and with
// ConfirmPaid only once the Order API agrees. Otherwise ErrPaymentUnverified is returned
// and nothing is written.
func (s *CheckoutService) Resolve(ctx context.Context, owner string, result models.PaymentResult) (models.CheckoutState, error) {
	orderNumber := strings.TrimSpace(result.OrderNumber)
	if orderNumber == "" {
		return models.CheckoutError, models.NewValidationError("MerchantTradeNo", "order number is required")
	}

	unlock := s.resolving.Lock(orderNumber)
	defer unlock()

	if s.isCompleted(ctx, orderNumber) {
		if !result.Success {
			s.logger.Info("ignoring failure result for completed order", zap.String("order_number", orderNumber))
		}
		return models.CheckoutCompleted, nil
	}

	if !result.Success {
		s.logger.Info("payment failed",
			zap.String("order_number", orderNumber),
			zap.String("code", result.Code),
			zap.String("message", result.Message),
		)
		return models.CheckoutFailed, nil
	}

	origin, ok := s.origin(ctx, orderNumber)
	if !ok || origin.Owner != owner {
		s.logger.Warn("rejecting payment result from another session",
			zap.String("order_number", orderNumber),
			zap.Bool("origin_known", ok),
		)
		return models.CheckoutError, models.ErrPaymentUnverified
	}

	if s.confirmPaid {
		if err := s.confirmUpstream(ctx, orderNumber); err != nil {
			return models.CheckoutError, err
		}
	}

	fromCart := origin.Source == models.SourceCart

	record, err := json.Marshal(completionRecord{Owner: origin.Owner, CompletedAt: s.now().UTC()})
	if err != nil {
		return models.CheckoutError, fmt.Errorf("failed to encode completion record: %w", err)
	}
	if err := s.records.Set(ctx, completedKey(orderNumber), record); err != nil {
		return models.CheckoutError, fmt.Errorf("failed to record completion: %w", err)
	}

	if fromCart {
		if _, err := s.carts.Clear(ctx, origin.Owner); err != nil {
			return models.CheckoutCompleted, fmt.Errorf("payment completed but cart was not cleared: %w", err)
		}
	}

	s.logger.Info("payment completed",
		zap.String("order_number", orderNumber),
		zap.Bool("cart_cleared", fromCart),
	)
	return models.CheckoutCompleted, nil
}

// confirmUpstream checks with the Order API that the order really is paid
func (s *CheckoutService) confirmUpstream(ctx context.Context, orderNumber string) error {
	cred, ok := s.auth.Credential(ctx)
	if !ok {
		return &models.AuthRequiredError{LoginURL: s.LoginURL(checkoutPath(orderNumber))}
	}

	order, err := s.orders.GetOrder(ctx, cred, orderNumber)
	if err != nil {
		return s.withLoginURL(err, checkoutPath(orderNumber))
	}
	if !order.IsPaid() {
		s.logger.Warn("payment result not confirmed by order api",
			zap.String("order_number", orderNumber),
			zap.String("status", string(order.Status)),
		)
		return models.ErrPaymentUnverified
	}
	return nil
}

// IsCompleted reports whether a successful payment was recorded for the order
func (s *CheckoutService) IsCompleted(ctx context.Context, orderNumber string) bool {
	return s.isCompleted(ctx, orderNumber)
}

func (s *CheckoutService) isCompleted(ctx context.Context, orderNumber string) bool {
	_, err := s.records.Get(ctx, completedKey(orderNumber))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to read completion record", zap.String("order_number", orderNumber), zap.Error(err))
	}
	return err == nil
}

func (s *CheckoutService) recordOrigin(ctx context.Context, orderNumber string, origin originRecord) error {
	data, err := json.Marshal(origin)
	if err != nil {
		return fmt.Errorf("failed to encode checkout origin: %w", err)
	}
	if err := s.records.Set(ctx, originKey(orderNumber), data); err != nil {
		return fmt.Errorf("failed to record checkout origin: %w", err)
	}
	return nil
}

func (s *CheckoutService) origin(ctx context.Context, orderNumber string) (originRecord, bool) {
	var origin originRecord
	data, err := s.records.Get(ctx, originKey(orderNumber))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read checkout origin", zap.String("order_number", orderNumber), zap.Error(err))
		}
		return origin, false
	}
	if err := json.Unmarshal(data, &origin); err != nil || origin.Owner == "" {
		return originRecord{}, false
	}
	return origin, true
}

func (s *CheckoutService) orderSource(ctx context.Context, orderNumber string) models.CheckoutSource {
	if origin, ok := s.origin(ctx, orderNumber); ok {
		return origin.Source
	}
	return ""
}

func (s *CheckoutService) loadDirect(ctx context.Context, session storage.Store) (*models.DirectCheckout, error) {
	if session == nil {
		return nil, nil
	}
	data, err := session.Get(ctx, DirectCheckoutKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read direct checkout: %w", err)
	}

	var direct models.DirectCheckout
	if err := json.Unmarshal(data, &direct); err != nil {
		s.logger.Warn("discarding unreadable direct checkout", zap.Error(err))
		return nil, nil
	}
	return &direct, nil
}

func (s *CheckoutService) storeDirect(ctx context.Context, session storage.Store, direct *models.DirectCheckout) error {
	if session == nil {
		return errors.New("no session available for direct checkout")
	}
	data, err := json.Marshal(direct)
	if err != nil {
		return fmt.Errorf("failed to encode direct checkout: %w", err)
	}
	if err := session.Set(ctx, DirectCheckoutKey, data); err != nil {
		return fmt.Errorf("failed to store direct checkout: %w", err)
	}
	return nil
}

// withLoginURL fills in the login link on auth errors coming back from upstream
func (s *CheckoutService) withLoginURL(err error, returnPath string) error {
	var authErr *models.AuthRequiredError
	if errors.As(err, &authErr) && authErr.LoginURL == "" {
		authErr.LoginURL = s.LoginURL(returnPath)
	}
	return err
}

func errorSession(source models.CheckoutSource, orderNumber string, err error) *models.CheckoutSession {
	return &models.CheckoutSession{
		State:       models.CheckoutError,
		Source:      source,
		OrderNumber: orderNumber,
		Error:       err.Error(),
	}
}

func checkoutPath(orderNumber string) string {
	if orderNumber == "" {
		return "/checkout"
	}
	return "/checkout/" + url.PathEscape(orderNumber)
}

func originKey(orderNumber string) string {
	return "origin:" + orderNumber
}

func completedKey(orderNumber string) string {
	return "completed:" + orderNumber
}
