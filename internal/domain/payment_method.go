package domain

// Aliases of payment methods offered at checkout.
const (
	MethodBankCard     = "card"
	MethodBankCardRU   = "card_ru"
	MethodERIP         = "erip"
	MethodBankTransfer = "bank_transfer"
	MethodTerminal     = "terminal"
)
