package checkout

import (
	"fmt"
	"strings"
)

// PaymentMethod is the payer's choice. Its value is the backend payment type id.
type PaymentMethod int

const (
	PaymentCard   PaymentMethod = 1
	PaymentWallet PaymentMethod = 2
)

func (p PaymentMethod) Code() int {
	return int(p)
}

func (p PaymentMethod) String() string {
	switch p {
	case PaymentCard:
		return "card"
	case PaymentWallet:
		return "wallet"
	}
	return fmt.Sprintf("PaymentMethod(%d)", int(p))
}

func (p PaymentMethod) Valid() bool {
	return p == PaymentCard || p == PaymentWallet
}

// ParsePaymentMethod accepts the method name; "paypal" is the wallet.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "card":
		return PaymentCard, nil
	case "wallet", "paypal":
		return PaymentWallet, nil
	}
	return 0, fmt.Errorf("unknown payment method %q", value)
}
