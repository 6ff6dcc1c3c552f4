package briteverify

import (
	"context"
	"net/http"
)

// VerifySingle verifies one record in real time. Negative outcomes (an
// invalid mailbox, an undeliverable address) are results, not errors.
func (c *Client) VerifySingle(ctx context.Context, record ContactRecord) (*VerificationResult, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	var out VerificationResult
	err := c.call(ctx, call{
		operation: "verify_single",
		method:    http.MethodPost,
		url:       c.v1URL("fullverify"),
		body:      record.wire(),
		accept:    []int{http.StatusOK},
	}, &out)
	if err != nil {
		return nil, err
	}
	out.ExternalID = record.ExternalID
	return &out, nil
}

// VerifyEmail verifies a single email address.
func (c *Client) VerifyEmail(ctx context.Context, email string) (*EmailResult, error) {
	res, err := c.VerifySingle(ctx, ContactRecord{Email: email})
	if err != nil {
		return nil, err
	}
	if res.Email == nil {
		return nil, &MismatchedResponseError{Want: "email", Result: res}
	}
	return res.Email, nil
}

// VerifyPhone verifies a single phone number.
func (c *Client) VerifyPhone(ctx context.Context, phone string) (*PhoneResult, error) {
	res, err := c.VerifySingle(ctx, ContactRecord{Phone: phone})
	if err != nil {
		return nil, err
	}
	if res.Phone == nil {
		return nil, &MismatchedResponseError{Want: "phone", Result: res}
	}
	return res.Phone, nil
}

// VerifyAddress verifies a single street address.
func (c *Client) VerifyAddress(ctx context.Context, addr StreetAddress) (*AddressResult, error) {
	res, err := c.VerifySingle(ctx, ContactRecord{Address: &addr})
	if err != nil {
		return nil, err
	}
	if res.Address == nil {
		return nil, &MismatchedResponseError{Want: "address", Result: res}
	}
	return res.Address, nil
}
