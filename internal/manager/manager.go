package manager

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/mshop/payments/internal/converter"
	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
	"github.com/mshop/payments/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NotificationType selects the flow when the gateway can route order and
// registration callbacks to separate URLs.
type NotificationType int

const (
	NotificationOrder NotificationType = iota + 1
	NotificationRegistration
)

// Manager reconciles inbound gateway notifications against the order ledger
// and drives the post-settlement side effects. One Manager serves all
// gateways; all per-notification state lives on the stack.
type Manager struct {
	registry *gateway.Registry
	ledger   port.OrderLedger
	carts    port.CartRepository
	clients  port.ClientRepository

	converter    converter.Converter
	audit        port.AuditTrail
	delivery     port.DeliveryDispatcher
	registers    port.FiscalRegisters
	fiscalQueue  port.FiscalQueue
	sink         port.TransactionSink
	registration port.RegistrationService

	logger zerolog.Logger
}

type Config struct {
	Registry     *gateway.Registry
	Ledger       port.OrderLedger
	Carts        port.CartRepository
	Clients      port.ClientRepository
	Converter    converter.Converter
	Audit        port.AuditTrail
	Delivery     port.DeliveryDispatcher
	Registers    port.FiscalRegisters
	FiscalQueue  port.FiscalQueue
	Sink         port.TransactionSink
	Registration port.RegistrationService
	Logger       zerolog.Logger
}

func New(cfg Config) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is nil")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is nil")
	}

	return &Manager{
		registry:     cfg.Registry,
		ledger:       cfg.Ledger,
		carts:        cfg.Carts,
		clients:      cfg.Clients,
		converter:    cfg.Converter,
		audit:        cfg.Audit,
		delivery:     cfg.Delivery,
		registers:    cfg.Registers,
		fiscalQueue:  cfg.FiscalQueue,
		sink:         cfg.Sink,
		registration: cfg.Registration,
		logger:       cfg.Logger,
	}, nil
}

// HandleNotification runs one gateway callback through the matching flow and
// renders the gateway-specific acknowledgement. A returned error is an
// infrastructure failure: the caller answers 5xx so the gateway retries,
// because answering anything else would acknowledge a payment that was never
// verified.
func (m *Manager) HandleNotification(ctx context.Context, alias string, n domain.Notification, countryCode string, typ NotificationType) (gateway.Response, error) {
	system, err := m.registry.Get(alias)
	if err != nil {
		return gateway.Response{}, fmt.Errorf("registry.Get: %w", err)
	}

	rc := converter.NewRateCache(m.ledger)

	var resp domain.PaymentResponse
	if m.isRegistration(system, n, typ) {
		resp, err = m.processRegistrationNotification(ctx, system, n, countryCode)
	} else {
		resp, err = m.processOrderPayment(ctx, system, rc, n, countryCode)
	}
	if err != nil {
		return gateway.Response{}, err
	}

	if !resp.Success && resp.Message != "" {
		m.logger.Warn().
			Str("alias", alias).
			Str("code", resp.Code.String()).
			Str("message", resp.Message).
			Msg("notification rejected")
	}

	if resp.Success {
		if confirmer, ok := system.(gateway.Confirmer); ok {
			if err := confirmer.ConfirmPayment(ctx, n); err != nil {
				m.logger.Error().Err(err).Str("alias", alias).Msg("payment confirmation failed")
			}
		}
	}

	resp.Request = &n

	return system.BuildResponse(resp), nil
}

// isRegistration sniffs the flow for gateways that cannot route separate
// notification URLs: registration references carry a letter prefix that order
// numbers never have.
func (m *Manager) isRegistration(system gateway.System, n domain.Notification, typ NotificationType) bool {
	if typ == NotificationRegistration {
		return true
	}

	if _, ok := system.(gateway.OnlyNotificationURL); !ok {
		return false
	}

	return strings.ContainsAny(n.Get("orderNumber"), "rR")
}

// AvailableMethods lists the payment methods offered in a country, across
// every gateway registered for it.
func (m *Manager) AvailableMethods(countryCode string) []string {
	return lo.Uniq(lo.FlatMap(m.registry.ByCountry(countryCode), func(system gateway.System, _ int) []string {
		return system.PaymentMethods()
	}))
}

// comparePrices compares the amount due against the amount the gateway
// reports. When the currencies differ it retries through the reference
// currency; when even that is impossible it falls back to comparing the bare
// numbers, matching how orders priced before currency support was added were
// stored.
func (m *Manager) comparePrices(ctx context.Context, due, got domain.Money) int {
	cmp, err := due.Cmp(got)
	if err == nil {
		return cmp
	}

	refDue, dueErr := m.converter.ToReference(ctx, due)
	refGot, gotErr := m.converter.ToReference(ctx, got)
	if dueErr == nil && gotErr == nil {
		return refDue.Amount.Cmp(refGot.Amount)
	}

	m.logger.Warn().
		AnErr("due_error", dueErr).
		AnErr("got_error", gotErr).
		Str("due", due.String()).
		Str("got", got.String()).
		Msg("reference currency comparison unavailable, comparing raw amounts")

	return due.Amount.Cmp(got.Amount)
}

func (m *Manager) auditNotification(ctx context.Context, scope, alias string, data domain.PaymentData, n domain.Notification) {
	if m.audit == nil {
		return
	}

	doc, err := json.Marshal(data)
	if err != nil {
		m.logger.Error().Err(err).Msg("audit marshal failed")
		return
	}

	key := fmt.Sprintf("transaction:%s:%s:%s:%x", scope, alias, data.OrderID, md5.Sum(doc))
	if err := m.audit.SaveTransaction(ctx, key, n); err != nil {
		m.logger.Error().Err(err).Str("key", key).Msg("audit save failed")
	}
}
