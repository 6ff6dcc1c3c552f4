package fakeapi

import (
	"strings"
	"unicode"
)

// Contact is one record as posted by clients.
type Contact struct {
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// Address is the wire form of a street address.
type Address struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

func (c Contact) emailOnly() bool {
	return c.Email != "" && c.Phone == "" && c.Address == nil
}

func (c Contact) empty() bool {
	return strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == "" && c.Address == nil
}

var roleAccounts = map[string]bool{"info": true, "admin": true, "sales": true, "support": true}

type emailOutcome struct {
	account, domain string
	status          string
	code            string
	disposable      bool
	role            bool
}

// judgeEmail derives a deterministic outcome from the address:
//
//	no "@"              invalid (email_address_invalid)
//	*.invalid domain    invalid (email_domain_invalid)
//	bounce* account     invalid (email_account_invalid)
//	catchall.* domain   accept_all
//	*unknown* domain    unknown
//	mailinator.com      valid, disposable
//	info/admin/sales    valid, role address
func judgeEmail(email string) emailOutcome {
	email = strings.ToLower(strings.TrimSpace(email))
	account, domain, ok := strings.Cut(email, "@")
	out := emailOutcome{account: account, domain: domain, status: "valid"}
	switch {
	case !ok || account == "" || domain == "" || !strings.Contains(domain, "."):
		out.status, out.code = "invalid", "email_address_invalid"
	case strings.HasSuffix(domain, ".invalid"):
		out.status, out.code = "invalid", "email_domain_invalid"
	case strings.HasPrefix(account, "bounce"):
		out.status, out.code = "invalid", "email_account_invalid"
	case strings.HasPrefix(domain, "catchall."):
		out.status = "accept_all"
	case strings.Contains(domain, "unknown"):
		out.status = "unknown"
	case domain == "mailinator.com":
		out.disposable = true
	case roleAccounts[account]:
		out.role = true
	}
	return out
}

func (o emailOutcome) secondary() string {
	switch {
	case o.disposable:
		return "disposable"
	case o.role:
		return "role_address"
	}
	return ""
}

type phoneOutcome struct {
	digits  string
	status  string
	service string
	errors  []string
}

func judgePhone(phone string) phoneOutcome {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	out := phoneOutcome{digits: digits, status: "valid", errors: []string{}}
	switch {
	case digits == "":
		out.status, out.errors = "invalid", []string{"blank_phone_number"}
	case len(digits) < 10:
		out.status, out.errors = "invalid", []string{"invalid_phone_number"}
	case strings.HasPrefix(strings.TrimPrefix(digits, "1"), "000"):
		out.status, out.errors = "invalid", []string{"invalid_prefix"}
	case (digits[len(digits)-1]-'0')%2 == 0:
		out.service = "mobile"
	default:
		out.service = "land"
	}
	return out
}

type addressOutcome struct {
	addr      Address
	status    string
	corrected bool
	errors    []string
}

// judgeAddress upper-cases the street lines; lower-case input counts as a
// correction.
func judgeAddress(a Address) addressOutcome {
	out := addressOutcome{addr: a, status: "valid", errors: []string{}}
	zip := strings.TrimSpace(a.Zip)
	street := strings.TrimSpace(a.Address1)
	switch {
	case len(zip) != 5 || strings.IndexFunc(zip, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0:
		out.status, out.errors = "invalid", []string{"zip_code_invalid"}
	case street == "" || !unicode.IsDigit(rune(street[0])):
		out.status, out.errors = "invalid", []string{"street_number_missing"}
	}
	upper := strings.ToUpper(street)
	out.corrected = out.status == "valid" && upper != street
	if out.status == "valid" {
		out.addr.Address1 = upper
		out.addr.Address2 = strings.ToUpper(strings.TrimSpace(a.Address2))
	}
	return out
}

// singleResult renders a v1 fullverify response body.
func singleResult(c Contact) map[string]any {
	out := map[string]any{}
	if c.Email != "" {
		e := judgeEmail(c.Email)
		email := map[string]any{
			"address":      c.Email,
			"account":      e.account,
			"domain":       e.domain,
			"status":       e.status,
			"connected":    nil,
			"disposable":   e.disposable,
			"role_address": e.role,
		}
		if e.code != "" {
			email["error_code"] = e.code
			email["error"] = strings.ReplaceAll(e.code, "_", " ")
		}
		out["email"] = email
	}
	if c.Phone != "" {
		p := judgePhone(c.Phone)
		out["phone"] = map[string]any{
			"number":         p.digits,
			"service_type":   nullable(p.service),
			"phone_location": nil,
			"status":         p.status,
			"errors":         p.errors,
		}
	}
	if c.Address != nil {
		out["address"] = addressBody(judgeAddress(*c.Address))
	}
	return out
}

// exportRow renders one bulk export row. Email-only contacts use the flat
// row form.
func exportRow(c Contact) map[string]any {
	if c.emailOnly() {
		e := judgeEmail(c.Email)
		row := map[string]any{"email": c.Email, "status": e.status}
		if s := e.secondary(); s != "" {
			row["secondary_status"] = s
		}
		return row
	}
	row := map[string]any{}
	if c.Email != "" {
		e := judgeEmail(c.Email)
		email := map[string]any{"email": c.Email, "status": e.status}
		if s := e.secondary(); s != "" {
			email["secondary_status"] = s
		}
		row["email"] = email
	}
	if c.Phone != "" {
		p := judgePhone(c.Phone)
		phone := map[string]any{
			"phone":              p.digits,
			"phone_service_type": nullable(p.service),
			"phone_location":     nil,
			"status":             p.status,
		}
		if len(p.errors) > 0 {
			phone["secondary_status"] = p.errors[0]
		}
		row["phone"] = phone
	}
	if c.Address != nil {
		body := addressBody(judgeAddress(*c.Address))
		if errs, _ := body["errors"].([]string); len(errs) > 0 {
			body["secondary_status"] = errs[0]
		}
		row["address"] = body
	}
	return row
}

func addressBody(a addressOutcome) map[string]any {
	corrected := "false"
	if a.corrected {
		corrected = "true"
	}
	return map[string]any{
		"address1":  a.addr.Address1,
		"address2":  a.addr.Address2,
		"city":      a.addr.City,
		"state":     a.addr.State,
		"zip":       a.addr.Zip,
		"status":    a.status,
		"corrected": corrected,
		"errors":    a.errors,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
