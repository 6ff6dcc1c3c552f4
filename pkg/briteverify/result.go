package briteverify

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// EmailResult is the email part of a verification. Single verifications
// populate Account, Domain and the flags; bulk rows carry SecondaryStatus.
type EmailResult struct {
	Address         string             `json:"address"`
	Account         string             `json:"account,omitempty"`
	Domain          string             `json:"domain,omitempty"`
	Status          VerificationStatus `json:"status"`
	Connected       *bool              `json:"connected,omitempty"`
	Disposable      bool               `json:"disposable"`
	RoleAddress     bool               `json:"role_address"`
	ErrorCode       VerificationError  `json:"error_code,omitempty"`
	Error           string             `json:"error,omitempty"`
	SecondaryStatus VerificationError  `json:"secondary_status,omitempty"`
}

func (r *EmailResult) UnmarshalJSON(data []byte) error {
	var w struct {
		Address         string             `json:"address"`
		Email           string             `json:"email"`
		Account         string             `json:"account"`
		Domain          string             `json:"domain"`
		Status          VerificationStatus `json:"status"`
		Connected       json.RawMessage    `json:"connected"`
		Disposable      json.RawMessage    `json:"disposable"`
		RoleAddress     json.RawMessage    `json:"role_address"`
		ErrorCode       VerificationError  `json:"error_code"`
		Error           string             `json:"error"`
		SecondaryStatus *VerificationError `json:"secondary_status"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := EmailResult{
		Address:   w.Address,
		Account:   w.Account,
		Domain:    w.Domain,
		Status:    w.Status,
		ErrorCode: w.ErrorCode,
		Error:     w.Error,
	}
	if out.Address == "" {
		out.Address = w.Email
	}
	if out.Status == "" {
		out.Status = StatusUnknown
	}
	if len(w.Connected) > 0 && !isNull(w.Connected) {
		v, err := looseBool(w.Connected)
		if err != nil {
			return fmt.Errorf("email.connected: %w", err)
		}
		out.Connected = &v
	}
	var err error
	if out.Disposable, err = looseBool(w.Disposable); err != nil {
		return fmt.Errorf("email.disposable: %w", err)
	}
	if out.RoleAddress, err = looseBool(w.RoleAddress); err != nil {
		return fmt.Errorf("email.role_address: %w", err)
	}
	if w.SecondaryStatus != nil {
		out.SecondaryStatus = *w.SecondaryStatus
		if out.SecondaryStatus == ErrCodeRoleAddress {
			out.RoleAddress = true
		}
		if out.SecondaryStatus == ErrCodeDisposable {
			out.Disposable = true
		}
	}
	*r = out
	return nil
}

// PhoneResult is the phone part of a verification.
type PhoneResult struct {
	Number          string              `json:"number"`
	ServiceType     string              `json:"service_type,omitempty"`
	Location        string              `json:"phone_location,omitempty"`
	Status          VerificationStatus  `json:"status"`
	Errors          []VerificationError `json:"errors,omitempty"`
	SecondaryStatus VerificationError   `json:"secondary_status,omitempty"`
}

func (r *PhoneResult) UnmarshalJSON(data []byte) error {
	var w struct {
		Number           json.RawMessage     `json:"number"`
		Phone            json.RawMessage     `json:"phone"`
		ServiceType      *string             `json:"service_type"`
		PhoneServiceType *string             `json:"phone_service_type"`
		Location         json.RawMessage     `json:"phone_location"`
		Status           VerificationStatus  `json:"status"`
		Errors           []VerificationError `json:"errors"`
		SecondaryStatus  *VerificationError  `json:"secondary_status"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	number, err := looseString(w.Number)
	if err != nil {
		return fmt.Errorf("phone.number: %w", err)
	}
	if number == "" {
		if number, err = looseString(w.Phone); err != nil {
			return fmt.Errorf("phone.phone: %w", err)
		}
	}
	out := PhoneResult{
		Number:   number,
		Location: compactText(w.Location),
		Status:   w.Status,
		Errors:   w.Errors,
	}
	switch {
	case w.ServiceType != nil:
		out.ServiceType = *w.ServiceType
	case w.PhoneServiceType != nil:
		out.ServiceType = *w.PhoneServiceType
	}
	if out.Status == "" {
		out.Status = StatusUnknown
	}
	if w.SecondaryStatus != nil {
		out.SecondaryStatus = *w.SecondaryStatus
	}
	*r = out
	return nil
}

// AddressResult is the address part of a verification. Corrected is set when
// the API normalized the input into a different deliverable form.
type AddressResult struct {
	Address1        string              `json:"address1"`
	Address2        string              `json:"address2,omitempty"`
	City            string              `json:"city"`
	State           string              `json:"state"`
	Zip             string              `json:"zip"`
	Status          VerificationStatus  `json:"status"`
	Corrected       bool                `json:"corrected"`
	Errors          []VerificationError `json:"errors,omitempty"`
	SecondaryStatus VerificationError   `json:"secondary_status,omitempty"`
}

func (r *AddressResult) UnmarshalJSON(data []byte) error {
	var w struct {
		Address1        string              `json:"address1"`
		Address2        *string             `json:"address2"`
		City            string              `json:"city"`
		State           string              `json:"state"`
		Zip             json.RawMessage     `json:"zip"`
		Status          VerificationStatus  `json:"status"`
		Corrected       json.RawMessage     `json:"corrected"`
		Errors          []VerificationError `json:"errors"`
		SecondaryStatus *VerificationError  `json:"secondary_status"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	zip, err := looseString(w.Zip)
	if err != nil {
		return fmt.Errorf("address.zip: %w", err)
	}
	corrected, err := looseBool(w.Corrected)
	if err != nil {
		return fmt.Errorf("address.corrected: %w", err)
	}
	out := AddressResult{
		Address1:  w.Address1,
		City:      w.City,
		State:     w.State,
		Zip:       zip,
		Status:    w.Status,
		Corrected: corrected,
		Errors:    w.Errors,
	}
	if w.Address2 != nil && !blank(*w.Address2) {
		out.Address2 = *w.Address2
	}
	if out.Status == "" {
		out.Status = StatusUnknown
	}
	if w.SecondaryStatus != nil {
		out.SecondaryStatus = *w.SecondaryStatus
	}
	*r = out
	return nil
}

// VerificationResult is the outcome for one ContactRecord, from either the
// single endpoint or a bulk export page. Duration is only reported by single
// verifications. ExternalID echoes the originating record.
type VerificationResult struct {
	Email      *EmailResult
	Phone      *PhoneResult
	Address    *AddressResult
	Duration   time.Duration
	ExternalID string
}

type verificationResultJSON struct {
	Email      *EmailResult   `json:"email,omitempty"`
	Phone      *PhoneResult   `json:"phone,omitempty"`
	Address    *AddressResult `json:"address,omitempty"`
	Duration   *float64       `json:"duration,omitempty"`
	ExternalID string         `json:"external_id,omitempty"`
}

func (r VerificationResult) MarshalJSON() ([]byte, error) {
	out := verificationResultJSON{
		Email:      r.Email,
		Phone:      r.Phone,
		Address:    r.Address,
		ExternalID: r.ExternalID,
	}
	if r.Duration > 0 {
		secs := r.Duration.Seconds()
		out.Duration = &secs
	}
	return json.Marshal(out)
}

func (r *VerificationResult) UnmarshalJSON(data []byte) error {
	var w struct {
		Email           json.RawMessage    `json:"email"`
		Phone           *PhoneResult       `json:"phone"`
		Address         *AddressResult     `json:"address"`
		Duration        json.RawMessage    `json:"duration"`
		ExternalID      json.RawMessage    `json:"external_id"`
		Status          VerificationStatus `json:"status"`
		SecondaryStatus *VerificationError `json:"secondary_status"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := VerificationResult{Phone: w.Phone, Address: w.Address}

	if len(w.Email) > 0 && !isNull(w.Email) {
		var bare string
		if err := json.Unmarshal(w.Email, &bare); err == nil {
			// Email-only export rows carry the status at the top level.
			email := &EmailResult{Address: bare, Status: w.Status}
			if email.Status == "" {
				email.Status = StatusUnknown
			}
			if w.SecondaryStatus != nil {
				email.SecondaryStatus = *w.SecondaryStatus
				email.RoleAddress = email.SecondaryStatus == ErrCodeRoleAddress
				email.Disposable = email.SecondaryStatus == ErrCodeDisposable
			}
			out.Email = email
		} else {
			var email EmailResult
			if err := json.Unmarshal(w.Email, &email); err != nil {
				return fmt.Errorf("email: %w", err)
			}
			out.Email = &email
		}
	}

	if len(w.Duration) > 0 && !isNull(w.Duration) {
		var secs float64
		if err := json.Unmarshal(w.Duration, &secs); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return fmt.Errorf("duration: invalid value %v", secs)
		}
		out.Duration = time.Duration(secs * float64(time.Second))
	}

	ext, err := looseString(w.ExternalID)
	if err != nil {
		return fmt.Errorf("external_id: %w", err)
	}
	out.ExternalID = ext
	*r = out
	return nil
}

// Status aggregates the sub-results: any invalid part makes the whole record
// invalid, then unknown (including unrecognized values), then accept_all.
func (r VerificationResult) Status() VerificationStatus {
	worst := -1
	for _, s := range r.statuses() {
		if sev := s.severity(); sev > worst {
			worst = sev
		}
	}
	switch worst {
	case 0:
		return StatusValid
	case 1:
		return StatusAcceptAll
	case 3:
		return StatusInvalid
	default:
		return StatusUnknown
	}
}

func (r VerificationResult) statuses() []VerificationStatus {
	var out []VerificationStatus
	if r.Email != nil {
		out = append(out, r.Email.Status)
	}
	if r.Phone != nil {
		out = append(out, r.Phone.Status)
	}
	if r.Address != nil {
		out = append(out, r.Address.Status)
	}
	return out
}

// Errors lists every error code reported by the sub-results.
func (r VerificationResult) Errors() []VerificationError {
	var out []VerificationError
	if r.Email != nil {
		if r.Email.ErrorCode != "" {
			out = append(out, r.Email.ErrorCode)
		} else if r.Email.SecondaryStatus != "" && r.Email.Status == StatusInvalid {
			out = append(out, r.Email.SecondaryStatus)
		}
	}
	if r.Phone != nil {
		out = append(out, r.Phone.Errors...)
		if len(r.Phone.Errors) == 0 && r.Phone.SecondaryStatus != "" && r.Phone.Status == StatusInvalid {
			out = append(out, r.Phone.SecondaryStatus)
		}
	}
	if r.Address != nil {
		out = append(out, r.Address.Errors...)
		if len(r.Address.Errors) == 0 && r.Address.SecondaryStatus != "" && r.Address.Status == StatusInvalid {
			out = append(out, r.Address.SecondaryStatus)
		}
	}
	return out
}

// correlationKey mirrors ContactRecord.correlationKey for the returned values.
func (r VerificationResult) correlationKey() string {
	switch {
	case r.Email != nil && !blank(r.Email.Address):
		return "email:" + normalizeEmail(r.Email.Address)
	case r.Phone != nil && !blank(r.Phone.Number):
		return "phone:" + digitsOnly(r.Phone.Number)
	case r.Address != nil && !blank(r.Address.Address1):
		return "address:" + normalizeLower(r.Address.Address1)
	}
	return ""
}
