package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/product"

	"shopfront/internal/apperr"
	"shopfront/internal/config"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// StripeProcessor talks to Stripe through the package-level stripe-go resources.
type StripeProcessor struct {
	timeout     time.Duration
	environment string
}

func NewStripeProcessor(cfg config.StripeConfig) (*StripeProcessor, error) {
	env, err := normalizeEnv(cfg.Env)
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}
	stripe.Key = apiKey
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeProcessor{timeout: timeout, environment: env}, nil
}

func (s *StripeProcessor) Environment() string { return s.environment }

func (s *StripeProcessor) CreateProduct(ctx context.Context, p Product) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.ProductParams{
		ID:   stripe.String(p.ID),
		Name: stripe.String(p.Name),
	}
	if p.ImageURL != "" {
		params.Images = stripe.StringSlice([]string{p.ImageURL})
	}
	params.Context = ctx
	created, err := product.New(params)
	if err != nil {
		// The id is deterministic, so a product left behind by an earlier attempt is ours.
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Code == stripe.ErrorCodeResourceAlreadyExists {
			return p.ID, nil
		}
		return "", classify(ctx, "create product", err)
	}
	return created.ID, nil
}

func (s *StripeProcessor) CreatePrice(ctx context.Context, req PriceRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PriceParams{
		UnitAmount: stripe.Int64(req.UnitAmount),
		Currency:   stripe.String(req.Currency),
		Product:    stripe.String(req.ProductID),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx
	created, err := price.New(params)
	if err != nil {
		return "", classify(ctx, "create price", err)
	}
	return created.ID, nil
}

func (s *StripeProcessor) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(li.PriceID),
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	params := &stripe.CheckoutSessionParams{
		LineItems:  items,
		Mode:       stripe.String(req.Mode),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.ClientReference != "" {
		params.ClientReferenceID = stripe.String(req.ClientReference)
	}
	params.Context = ctx
	cs, err := session.New(params)
	if err != nil {
		return Session{}, classify(ctx, "create checkout session", err)
	}
	return toSession(cs), nil
}

func (s *StripeProcessor) GetCheckoutSession(ctx context.Context, id string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := session.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return Session{}, apperr.Wrap(apperr.CodeNotFound, err, "checkout session not found")
		}
		return Session{}, classify(ctx, "get checkout session", err)
	}
	return toSession(cs), nil
}

func toSession(cs *stripe.CheckoutSession) Session {
	return Session{
		ID:      cs.ID,
		URL:     cs.URL,
		Paid:    cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Expired: cs.Status == stripe.CheckoutSessionStatusExpired,
	}
}

// classify maps a failed call onto UpstreamTimeout or UpstreamFailure.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeUpstreamTimeout, err, op+" timed out")
	}
	return apperr.Wrap(apperr.CodeUpstreamFailure, err, op+" failed")
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
