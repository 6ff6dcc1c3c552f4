package briteverify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AccountBalance is the credit balance as of RecordedOn.
type AccountBalance struct {
	Credits          int       `json:"credits"`
	CreditsInReserve int       `json:"credits_in_reserve"`
	RecordedOn       time.Time `json:"recorded_on"`
}

func (b *AccountBalance) UnmarshalJSON(data []byte) error {
	var w struct {
		Credits          json.RawMessage `json:"credits"`
		CreditsInReserve json.RawMessage `json:"credits_in_reserve"`
		RecordedOn       string          `json:"recorded_on"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out AccountBalance
	credits, err := optionalInt(w.Credits)
	if err != nil {
		return fmt.Errorf("credits: %w", err)
	}
	if credits != nil {
		out.Credits = *credits
	}
	reserve, err := optionalInt(w.CreditsInReserve)
	if err != nil {
		return fmt.Errorf("credits_in_reserve: %w", err)
	}
	if reserve != nil {
		out.CreditsInReserve = *reserve
	}
	if !blank(w.RecordedOn) {
		if out.RecordedOn, err = parseRecordedOn(w.RecordedOn); err != nil {
			return err
		}
	}
	*b = out
	return nil
}

// GetAccountBalance returns the account's current credits.
func (c *Client) GetAccountBalance(ctx context.Context) (*AccountBalance, error) {
	var out AccountBalance
	err := c.call(ctx, call{
		operation: "get_account_balance",
		method:    http.MethodGet,
		url:       c.v3URL("accounts", "credits"),
		accept:    []int{http.StatusOK},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentCredits returns only the available credit count.
func (c *Client) CurrentCredits(ctx context.Context) (int, error) {
	b, err := c.GetAccountBalance(ctx)
	if err != nil {
		return 0, err
	}
	return b.Credits, nil
}

// CurrentCreditsInReserve returns the credits held for running lists.
func (c *Client) CurrentCreditsInReserve(ctx context.Context) (int, error) {
	b, err := c.GetAccountBalance(ctx)
	if err != nil {
		return 0, err
	}
	return b.CreditsInReserve, nil
}
