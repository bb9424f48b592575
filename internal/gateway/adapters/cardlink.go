package adapters

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
)

const cardlinkMerchantDataDelimiter = "~"

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Cardlink is a card-processing gateway that signs every form exchange with
// a SHA1 digest over the sorted parameter values, salted with the merchant
// secret. Amounts travel in minor units.
type Cardlink struct {
	merchantID  string
	secret      string
	checkoutURL string
}

func NewCardlink(merchantID, secret, checkoutURL string) *Cardlink {
	return &Cardlink{
		merchantID:  merchantID,
		secret:      secret,
		checkoutURL: checkoutURL,
	}
}

func (c *Cardlink) Alias() string { return "cardlink" }

func (c *Cardlink) CountryCodes() []string { return []string{"ua", "lv"} }

func (c *Cardlink) SuccessStatusCode() string { return "approved" }

func (c *Cardlink) PaymentMethods() []string { return []string{domain.MethodBankCard} }

func (c *Cardlink) NotificationWay() gateway.NotificationWay { return gateway.GatewayToShop }

func (c *Cardlink) CanPrintBill() bool { return true }

func (c *Cardlink) ValidateRequest(n domain.Notification) bool {
	return c.signature(paramsMap(n)) == n.Get("signature")
}

func (c *Cardlink) PaymentData(n domain.Notification, _ string) (domain.PaymentData, error) {
	var data domain.PaymentData

	unit, err := currency.ParseISO(n.Get("currency"))
	if err != nil {
		return data, fmt.Errorf("currency[%s] is not valid: %w", n.Get("currency"), err)
	}

	minor, err := decimal.NewFromString(n.Get("amount"))
	if err != nil {
		return data, fmt.Errorf("amount[%s] is not valid: %w", n.Get("amount"), err)
	}

	price := domain.Money{Amount: minor, Currency: unit}
	price.Amount = price.Amount.Shift(-price.Decimals())

	// the gateway refuses to see the same order id twice, so redirects carry
	// a random suffix which is stripped here
	orderID, _, _ := strings.Cut(n.Get("order_id"), "/")

	contract := ""
	if parts := strings.Split(n.Get("merchant_data"), cardlinkMerchantDataDelimiter); len(parts) > 1 {
		contract = parts[1]
	}

	return domain.PaymentData{
		OrderID:      orderID,
		Contract:     contract,
		LanguageCode: n.LanguageCode,
		Price:        price,
		PaymentID:    nonDigits.ReplaceAllString(n.Get("payment_id"), ""),
		Status:       n.Get("order_status"),
		Hash:         n.Get("signature"),
		Method:       domain.MethodBankCard,
	}, nil
}

func (c *Cardlink) BuildResponse(resp domain.PaymentResponse) gateway.Response {
	body := "OK"
	if !resp.Success {
		body = resp.Message
		if body == "" {
			body = resp.Code.String()
		}
	}

	return gateway.Response{
		StatusCode:  200,
		ContentType: "text/plain",
		Body:        []byte(body),
	}
}

func (c *Cardlink) RedirectData(req gateway.RedirectRequest) (domain.RedirectData, error) {
	params := map[string]string{
		"server_callback_url":    req.NotificationURL,
		"response_url":           req.SuccessURL,
		"order_id":               req.OrderID + "/" + strings.ToUpper(uuid.NewString()[:8]),
		"order_desc":             req.Description,
		"currency":               req.Price.Currency.String(),
		"amount":                 req.Price.Round().Amount.Shift(req.Price.Decimals()).String(),
		"default_payment_system": "card",
		"merchant_id":            c.merchantID,
		"merchant_data":          strings.Join([]string{c.Alias(), req.Contract}, cardlinkMerchantDataDelimiter),
	}

	if lang, ok := cardlinkLanguages[req.LanguageCode]; ok {
		params["lang"] = lang
	}

	params["signature"] = c.signature(params)

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	redirect := domain.RedirectData{
		URL:    c.checkoutURL,
		Method: domain.RedirectMethodPost,
	}
	for _, key := range keys {
		redirect.Params = append(redirect.Params, domain.RedirectParam{Key: key, Value: params[key]})
	}

	return redirect, nil
}

var cardlinkLanguages = map[string]string{
	"ru": "ru",
	"ua": "uk",
	"en": "en",
	"lv": "lv",
	"fr": "fr",
}

// signature is sha1 over the merchant secret followed by the non-empty
// parameter values in key order; the signature parameter itself is skipped.
func (c *Cardlink) signature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "signature" || params[key] == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, c.secret)
	for _, key := range keys {
		parts = append(parts, params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))

	return hex.EncodeToString(sum[:])
}

func paramsMap(n domain.Notification) map[string]string {
	params := make(map[string]string, len(n.Params))
	for key := range n.Params {
		params[key] = n.Params.Get(key)
	}
	return params
}
