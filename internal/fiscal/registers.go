package fiscal

import (
	"github.com/mshop/payments/internal/port"
)

// CashRegisters maps a country code to its fiscal printer. Countries without
// a receipt obligation simply have no entry.
type CashRegisters struct {
	byCountry map[string]port.FiscalPrinter
}

func NewCashRegisters(byCountry map[string]port.FiscalPrinter) CashRegisters {
	return CashRegisters{byCountry: byCountry}
}

func (r CashRegisters) ForCountry(countryCode string) port.FiscalPrinter {
	return r.byCountry[countryCode]
}
