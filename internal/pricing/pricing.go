// Package pricing converts between fiat prices and wei.
package pricing

import (
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/shopspring/decimal"
)

var weiPerCoin = decimal.New(1, 18)

// Converter uses a fixed USD price of one native coin.
type Converter struct {
	usdPerCoin decimal.Decimal
}

func NewConverter(usdPerCoin decimal.Decimal) (*Converter, error) {
	if !usdPerCoin.IsPositive() {
		return nil, fmt.Errorf("%w: coin price must be positive, got %s", common.ErrorInvalidArgument, usdPerCoin)
	}
	return &Converter{usdPerCoin: usdPerCoin}, nil
}

// MaxUSD caps a single ticket price.
var MaxUSD = decimal.NewFromInt(1_000_000)

// maxExponent bounds the decimal exponent accepted from callers. Larger
// exponents make the wei conversion arbitrarily expensive.
const maxExponent = 30

func checkExponent(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return fmt.Errorf("%w: amount out of range", common.ErrorInvalidArgument)
	}
	return nil
}

// ParseUSD parses a decimal dollar amount such as "20" or "19.99". At most
// two decimal places and MaxUSD are accepted.
func ParseUSD(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad amount %q", common.ErrorInvalidArgument, s)
	}
	if err := checkExponent(d); err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(d.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("%w: amount has more than two decimal places", common.ErrorInvalidArgument)
	}
	if d.GreaterThan(MaxUSD) {
		return decimal.Zero, fmt.Errorf("%w: amount exceeds %s", common.ErrorInvalidArgument, MaxUSD)
	}
	return d, nil
}

// ParseRate parses the USD price of one coin.
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad rate %q", common.ErrorInvalidArgument, s)
	}
	if err := checkExponent(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// USDToWei truncates to whole wei.
func (c *Converter) USDToWei(usd decimal.Decimal) (*big.Int, error) {
	if usd.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", common.ErrorInvalidArgument, usd)
	}
	if err := checkExponent(usd); err != nil {
		return nil, err
	}
	if usd.GreaterThan(MaxUSD) {
		return nil, fmt.Errorf("%w: amount exceeds %s", common.ErrorInvalidArgument, MaxUSD)
	}
	q := new(big.Rat).Quo(usd.Mul(weiPerCoin).Rat(), c.usdPerCoin.Rat())
	return new(big.Int).Quo(q.Num(), q.Denom()), nil
}

func (c *Converter) WeiToUSD(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18).Mul(c.usdPerCoin)
}

func (c *Converter) Rate() decimal.Decimal { return c.usdPerCoin }
