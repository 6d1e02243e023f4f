package stripe

import (
	"context"
	"fmt"
	"strings"

	stripesdk "github.com/stripe/stripe-go/v82"
)

// Account 网关账户状态
type Account struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Country          string
	DefaultCurrency  string
}

// RetrieveAccount 查询账户；accountID 为空时返回当前密钥所属账户，可用于校验密钥
func (c *Client) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	var (
		account *stripesdk.Account
		err     error
	)
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		params := &stripesdk.AccountParams{}
		params.Context = ctx
		account, err = c.reader.Accounts.GetByID(accountID, params)
	} else {
		account, err = c.reader.Accounts.Get()
	}
	if err != nil {
		return nil, wrapError("retrieve account", err)
	}
	return toAccount(account)
}

func toAccount(account *stripesdk.Account) (*Account, error) {
	if account == nil || strings.TrimSpace(account.ID) == "" {
		return nil, fmt.Errorf("%w: missing account id", ErrResponseInvalid)
	}
	return &Account{
		ID:               account.ID,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		Country:          account.Country,
		DefaultCurrency:  strings.ToUpper(string(account.DefaultCurrency)),
	}, nil
}
