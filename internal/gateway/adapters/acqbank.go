package adapters

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
)

// AcqBank is the acquiring bank integration. The bank settles exclusively in
// rubles, pushes callback notifications authenticated by an HMAC checksum and
// expects a bare XML acknowledgement with a numeric result code.
type AcqBank struct {
	secret     string
	gatewayURL string
	httpClient *http.Client
	allowIPs   map[string]struct{}
	rub        currency.Unit
}

func NewAcqBank(secret, gatewayURL string, httpClient *http.Client, allowIPs []string) *AcqBank {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	ips := make(map[string]struct{}, len(allowIPs))
	for _, ip := range allowIPs {
		ips[ip] = struct{}{}
	}

	return &AcqBank{
		secret:     secret,
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		httpClient: httpClient,
		allowIPs:   ips,
		rub:        currency.RUB,
	}
}

func (a *AcqBank) Alias() string { return "acqbank" }

func (a *AcqBank) CountryCodes() []string { return []string{"ru"} }

func (a *AcqBank) SuccessStatusCode() string { return "success" }

func (a *AcqBank) PaymentMethods() []string { return []string{domain.MethodBankCardRU} }

func (a *AcqBank) NotificationWay() gateway.NotificationWay { return gateway.GatewayToShop }

func (a *AcqBank) CanPrintBill() bool { return false }

func (a *AcqBank) OnlyNotificationURL() {}

func (a *AcqBank) AvailableCurrency() currency.Unit { return a.rub }

func (a *AcqBank) DBAlias() string { return "acqbank" }

func (a *AcqBank) ValidateRequest(n domain.Notification) bool {
	if _, ok := a.allowIPs[n.ClientIP]; ok {
		return true
	}

	checksum := n.Get("checksum")
	if checksum == "" {
		return false
	}

	return hmac.Equal([]byte(a.checksum(n)), []byte(checksum))
}

// checksum is HMAC-SHA256 over "key;value;" pairs in key order, the checksum
// parameter itself excluded, rendered as uppercase hex.
func (a *AcqBank) checksum(n domain.Notification) string {
	keys := make([]string, 0, len(n.Params))
	for key := range n.Params {
		if key == "checksum" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString(";")
		sb.WriteString(n.Get(key))
		sb.WriteString(";")
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(sb.String()))

	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

func (a *AcqBank) PaymentData(n domain.Notification, _ string) (domain.PaymentData, error) {
	kopecks, err := decimal.NewFromString(n.Get("amount"))
	if err != nil {
		return domain.PaymentData{}, fmt.Errorf("amount[%s] is not valid: %w", n.Get("amount"), err)
	}

	status := "failed"
	if n.Get("operation") == "deposited" && n.Get("status") == "1" {
		status = a.SuccessStatusCode()
	}

	return domain.PaymentData{
		OrderID:      n.Get("orderNumber"),
		LanguageCode: n.LanguageCode,
		Price:        domain.Money{Amount: kopecks.Shift(-2), Currency: a.rub},
		PaymentID:    n.Get("mdOrder"),
		Status:       status,
		Hash:         n.Get("mdOrder"),
		Method:       domain.MethodBankCardRU,
	}, nil
}

var acqBankCodes = map[domain.MessageCode]int{
	domain.CodeInvalidRequest:      300,
	domain.CodeOrderNotExists:      5,
	domain.CodeLessSum:             241,
	domain.CodeMoreSum:             242,
	domain.CodeOrderExecutionError: 300,
	domain.CodeAlreadyPaid:         0,
	domain.CodeNotSuccess:          300,
}

// BuildResponse renders the XML acknowledgement. A replayed notification for
// an already settled order acknowledges with code 0 so the bank stops
// retrying it.
func (a *AcqBank) BuildResponse(resp domain.PaymentResponse) gateway.Response {
	code := 0
	if !resp.Success {
		var ok bool
		if code, ok = acqBankCodes[resp.Code]; !ok {
			code = 300
		}
	}

	body := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"UTF-8\"?><response code=\"%d\"/>", code)

	return gateway.Response{
		StatusCode:  200,
		ContentType: "application/xml",
		Body:        []byte(body),
	}
}

// ConfirmPayment completes the two-phase deposit on the bank side. The hold
// stays unconfirmed, and eventually expires, if this call is skipped.
func (a *AcqBank) ConfirmPayment(ctx context.Context, n domain.Notification) error {
	form := url.Values{
		"orderId": {n.Get("mdOrder")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.gatewayURL+"/rest/deposit.do", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("io.Copy: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deposit order[%s]: unexpected status %d", n.Get("orderNumber"), resp.StatusCode)
	}

	return nil
}

func (a *AcqBank) BuildTransaction(data domain.PaymentData) domain.PaymentTransaction {
	return domain.PaymentTransaction{
		ID:       data.OrderID + "/" + data.Hash,
		OrderID:  data.OrderID,
		Sum:      data.Price.Amount,
		Currency: a.rub.String(),
		Type:     1,
		Date:     time.Now(),
	}
}

func (a *AcqBank) RedirectData(req gateway.RedirectRequest) (domain.RedirectData, error) {
	price := req.Price
	if price.Currency != a.rub {
		return domain.RedirectData{}, fmt.Errorf("alias[%s]: currency[%s] not supported", a.Alias(), price.Currency)
	}

	params := []domain.RedirectParam{
		{Key: "orderNumber", Value: req.OrderID},
		{Key: "amount", Value: price.Round().Amount.Shift(2).String()},
		{Key: "returnUrl", Value: req.SuccessURL},
		{Key: "failUrl", Value: req.FailURL},
		{Key: "language", Value: req.LanguageCode},
		{Key: "description", Value: req.Description},
	}

	return domain.RedirectData{
		URL:    a.gatewayURL + "/payment.html",
		Params: params,
		Method: domain.RedirectMethodGet,
	}, nil
}
