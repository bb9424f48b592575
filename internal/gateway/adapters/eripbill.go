package adapters

import (
	"fmt"
	"math/big"
	"net"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ERIPBill serves the national bill-payment terminal network. The terminal
// drives a three step conversation against the notification endpoint: look up
// the account, submit the payment, confirm it. There is no browser redirect,
// the payer types an account number at a terminal.
type ERIPBill struct {
	serviceID string
	allowNets []*net.IPNet
	byn       currency.Unit
}

func NewERIPBill(serviceID string, allowCIDRs []string) (*ERIPBill, error) {
	byn, err := currency.ParseISO("BYN")
	if err != nil {
		return nil, fmt.Errorf("currency.ParseISO: %w", err)
	}

	e := &ERIPBill{serviceID: serviceID, byn: byn}

	for _, cidr := range allowCIDRs {
		if !strings.Contains(cidr, "/") {
			cidr += "/32"
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("net.ParseCIDR[%s]: %w", cidr, err)
		}
		e.allowNets = append(e.allowNets, ipNet)
	}

	return e, nil
}

func (e *ERIPBill) Alias() string { return "eripbill" }

func (e *ERIPBill) CountryCodes() []string { return []string{"by"} }

func (e *ERIPBill) SuccessStatusCode() string { return "success" }

func (e *ERIPBill) PaymentMethods() []string { return []string{domain.MethodERIP} }

func (e *ERIPBill) NotificationWay() gateway.NotificationWay { return gateway.GatewayToShop }

func (e *ERIPBill) CanPrintBill() bool { return true }

func (e *ERIPBill) OnlyNotificationURL() {}

func (e *ERIPBill) AccountParam() string { return "account" }

func (e *ERIPBill) AmountParam() string { return "amount" }

func (e *ERIPBill) PaymentIDParam() string { return "transactionId" }

// ValidateRequest checks the service id and that the caller sits inside the
// terminal network's address ranges. The protocol carries no signature.
func (e *ERIPBill) ValidateRequest(n domain.Notification) bool {
	if n.Get("serviceId") != e.serviceID {
		return false
	}

	ip := net.ParseIP(n.ClientIP)
	if ip == nil {
		return false
	}

	for _, ipNet := range e.allowNets {
		if ipNet.Contains(ip) {
			return true
		}
	}

	return false
}

func (e *ERIPBill) PaymentData(n domain.Notification, _ string) (domain.PaymentData, error) {
	amount, err := decimal.NewFromString(n.Get(e.AmountParam()))
	if err != nil && n.Has(e.AmountParam()) {
		return domain.PaymentData{}, fmt.Errorf("amount[%s] is not valid: %w", n.Get(e.AmountParam()), err)
	}

	return domain.PaymentData{
		OrderID:      strings.ToUpper(n.Get(e.AccountParam())),
		LanguageCode: n.LanguageCode,
		Price:        domain.Money{Amount: amount, Currency: e.byn},
		PaymentID:    n.Get(e.PaymentIDParam()),
		// the terminal never reports a failed payment, failure is simply the
		// absence of the next step
		Status: e.SuccessStatusCode(),
		Method: domain.MethodERIP,
	}, nil
}

// ResolveDeferred decides whether the current step of the terminal dialog may
// proceed against the bill the ticket describes.
func (e *ERIPBill) ResolveDeferred(n domain.Notification, ticket domain.PaymentTicket) domain.DeferredResult {
	if ticket.PaymentSystem != "" && ticket.PaymentSystem != e.Alias() {
		return domain.DeferredResult{Permit: false, Step: e.step(n)}
	}

	switch n.Get("type") {
	case "accountInfo":
		return domain.DeferredResult{Permit: true, Step: domain.DeferredStepAccountInfo}

	case "submitPayment":
		amount, err := decimal.NewFromString(n.Get(e.AmountParam()))
		permit := err == nil && amount.IsPositive() && ticket.Sum.Round(2).Equal(amount.Round(2))
		return domain.DeferredResult{Permit: permit, Step: domain.DeferredStepSubmit}

	case "confirmPayment":
		trxID := new(big.Int).SetBytes([]byte(ticket.ID)).String()
		permit := n.Get("unipayTrxId") == trxID && n.Get("confirmed") == "true"
		return domain.DeferredResult{Permit: permit, Step: domain.DeferredStepConfirm}
	}

	return domain.DeferredResult{Permit: false, Step: domain.DeferredStepNone}
}

func (e *ERIPBill) step(n domain.Notification) domain.DeferredStep {
	switch n.Get("type") {
	case "accountInfo":
		return domain.DeferredStepAccountInfo
	case "submitPayment":
		return domain.DeferredStepSubmit
	case "confirmPayment":
		return domain.DeferredStepConfirm
	}
	return domain.DeferredStepNone
}

type eripAccountInfo struct {
	ResponseCode int    `json:"responseCode"`
	Account      string `json:"account,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
	TrxID        string `json:"unipayTrxId,omitempty"`
}

const (
	eripCodeAllow = 0
	eripCodeDeny  = 3
)

// BuildResponse renders the step-specific JSON document the terminal
// protocol expects. Each step echoes the bill attributes it needs.
func (e *ERIPBill) BuildResponse(resp domain.PaymentResponse) gateway.Response {
	doc := eripAccountInfo{ResponseCode: eripCodeDeny}

	if resp.Success && resp.Deferred != nil {
		doc.ResponseCode = eripCodeAllow

		if resp.Ticket != nil {
			switch resp.Deferred.Step {
			case domain.DeferredStepAccountInfo:
				doc.Account = resp.Ticket.Contract
				doc.Currency = e.byn.String()
				if resp.Ticket.Sum.IsPositive() {
					// fixed two-decimal form; plain String() would trim the
					// trailing zero the terminal expects
					doc.Amount = resp.Ticket.Sum.StringFixed(2)
				}
			case domain.DeferredStepSubmit:
				doc.TrxID = new(big.Int).SetBytes([]byte(resp.Ticket.ID)).String()
			}
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return gateway.Response{StatusCode: 500, ContentType: "application/json", Body: []byte(`{"responseCode":3}`)}
	}

	return gateway.Response{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        body,
	}
}

// RedirectData is never used: the payer walks to a terminal, nothing
// redirects a browser to one.
func (e *ERIPBill) RedirectData(_ gateway.RedirectRequest) (domain.RedirectData, error) {
	return domain.RedirectData{}, fmt.Errorf("alias[%s]: no redirect flow", e.Alias())
}
