package briteverify

import (
	"encoding/json"
	"strings"
)

const phoneCharset = "0123456789 +().-ext"

// StreetAddress is a US postal address. Address2 is optional.
type StreetAddress struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// IsBlank reports whether no field carries a value.
func (a StreetAddress) IsBlank() bool {
	return blank(a.Address1) && blank(a.Address2) && blank(a.City) && blank(a.State) && blank(a.Zip)
}

// IsComplete reports whether every required field carries a value.
func (a StreetAddress) IsComplete() bool {
	return !blank(a.Address1) && !blank(a.City) && !blank(a.State) && !blank(a.Zip)
}

func (a StreetAddress) missing() []string {
	var out []string
	if blank(a.Address1) {
		out = append(out, "address1")
	}
	if blank(a.City) {
		out = append(out, "city")
	}
	if blank(a.State) {
		out = append(out, "state")
	}
	if blank(a.Zip) {
		out = append(out, "zip")
	}
	return out
}

func (a StreetAddress) normalized() StreetAddress {
	return StreetAddress{
		Address1: strings.TrimSpace(a.Address1),
		Address2: strings.TrimSpace(a.Address2),
		City:     strings.TrimSpace(a.City),
		State:    strings.TrimSpace(a.State),
		Zip:      strings.TrimSpace(a.Zip),
	}
}

// ContactRecord is one email, phone and/or address to verify. ExternalID is
// a caller-side correlation key and is never sent to the API.
type ContactRecord struct {
	Email      string         `json:"email,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Address    *StreetAddress `json:"address,omitempty"`
	ExternalID string         `json:"-"`
}

// Validate checks the record carries at least one verifiable field. A partially
// filled address is rejected rather than silently dropped.
func (r ContactRecord) Validate() error {
	hasAddress := false
	if r.Address != nil && !r.Address.IsBlank() {
		if missing := r.Address.missing(); len(missing) > 0 {
			return &ValidationError{Field: "address", Reason: "missing " + strings.Join(missing, ", ")}
		}
		hasAddress = true
	}
	if blank(r.Email) && blank(r.Phone) && !hasAddress {
		return &ValidationError{Field: "record", Reason: "at least one of email, phone or address is required"}
	}
	return nil
}

// IsEmpty reports whether the record has nothing to verify.
func (r ContactRecord) IsEmpty() bool {
	return blank(r.Email) && blank(r.Phone) && (r.Address == nil || r.Address.IsBlank())
}

// wire returns the trimmed request form.
func (r ContactRecord) wire() ContactRecord {
	out := ContactRecord{
		Email: strings.TrimSpace(r.Email),
		Phone: strings.TrimSpace(r.Phone),
	}
	if r.Address != nil && !r.Address.IsBlank() {
		addr := r.Address.normalized()
		out.Address = &addr
	}
	return out
}

// correlationKey identifies the record among bulk results.
func (r ContactRecord) correlationKey() string {
	switch {
	case !blank(r.Email):
		return "email:" + normalizeEmail(r.Email)
	case !blank(r.Phone):
		return "phone:" + digitsOnly(r.Phone)
	case r.Address != nil && !blank(r.Address.Address1):
		return "address:" + normalizeLower(r.Address.Address1)
	}
	return ""
}

// ParseContact builds a record from free text: a JSON object, an email
// address (anything with "@"), or a phone number.
func ParseContact(value string) (ContactRecord, error) {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return ContactRecord{}, &ValidationError{Field: "record", Reason: "empty input"}
	case strings.HasPrefix(v, "{"):
		var rec ContactRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return ContactRecord{}, &ValidationError{Field: "record", Reason: "invalid JSON contact", Err: err}
		}
		if err := rec.Validate(); err != nil {
			return ContactRecord{}, err
		}
		return rec, nil
	case strings.Contains(v, "@"):
		return ContactRecord{Email: v}, nil
	case looksLikePhone(v):
		return ContactRecord{Phone: v}, nil
	}
	return ContactRecord{}, &ValidationError{Field: "record", Reason: "not an email address, phone number or JSON contact: " + v}
}

func looksLikePhone(v string) bool {
	digits := 0
	for _, r := range strings.ToLower(v) {
		if !strings.ContainsRune(phoneCharset, r) {
			return false
		}
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits > 0
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func blank(v string) bool { return strings.TrimSpace(v) == "" }

func normalizeLower(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

func normalizeEmail(v string) string { return normalizeLower(v) }
