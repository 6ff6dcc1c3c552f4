package briteverify

import (
	"encoding/json"
	"strings"
)

// VerificationStatus is the validity verdict the API assigns to an email,
// phone number or street address. Values the API adds later are kept as-is.
type VerificationStatus string

const (
	StatusValid     VerificationStatus = "valid"
	StatusInvalid   VerificationStatus = "invalid"
	StatusAcceptAll VerificationStatus = "accept_all"
	StatusUnknown   VerificationStatus = "unknown"
)

// ParseVerificationStatus normalizes a wire value.
func ParseVerificationStatus(value string) VerificationStatus {
	v := normalizeToken(value)
	switch v {
	case "":
		return StatusUnknown
	case "acceptall":
		return StatusAcceptAll
	}
	return VerificationStatus(v)
}

// IsKnown reports whether s is one of the documented statuses.
func (s VerificationStatus) IsKnown() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusAcceptAll, StatusUnknown:
		return true
	}
	return false
}

// Risky reports whether the API could not confirm the mailbox (accept-all domains).
func (s VerificationStatus) Risky() bool { return s == StatusAcceptAll }

func (s *VerificationStatus) UnmarshalJSON(data []byte) error {
	raw, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*s = ParseVerificationStatus(raw)
	return nil
}

// severity orders statuses for aggregation; unrecognized values rank with unknown.
func (s VerificationStatus) severity() int {
	switch s {
	case StatusValid:
		return 0
	case StatusAcceptAll:
		return 1
	case StatusInvalid:
		return 3
	default:
		return 2
	}
}

// VerificationError is a machine-readable failure reason attached to a result.
type VerificationError string

const (
	ErrCodeDisposable            VerificationError = "disposable"
	ErrCodePMBRequired           VerificationError = "pmb_required"
	ErrCodeRoleAddress           VerificationError = "role_address"
	ErrCodeSuiteInvalid          VerificationError = "suite_invalid"
	ErrCodeSuiteMissing          VerificationError = "suite_missing"
	ErrCodeInvalidFormat         VerificationError = "invalid_format"
	ErrCodeInvalidPrefix         VerificationError = "invalid_prefix"
	ErrCodeMultipleMatch         VerificationError = "multiple_match"
	ErrCodeUnknownStreet         VerificationError = "unknown_street"
	ErrCodeZipCodeInvalid        VerificationError = "zip_code_invalid"
	ErrCodeBlankPhoneNumber      VerificationError = "blank_phone_number"
	ErrCodeBoxNumberInvalid      VerificationError = "box_number_invalid"
	ErrCodeBoxNumberMissing      VerificationError = "box_number_missing"
	ErrCodeEmailDomainInvalid    VerificationError = "email_domain_invalid"
	ErrCodeInvalidPhoneNumber    VerificationError = "invalid_phone_number"
	ErrCodeMailboxFullInvalid    VerificationError = "mailbox_full_invalid"
	ErrCodeDirectionalsInvalid   VerificationError = "directionals_invalid"
	ErrCodeEmailAccountInvalid   VerificationError = "email_account_invalid"
	ErrCodeEmailAddressInvalid   VerificationError = "email_address_invalid"
	ErrCodeStreetNumberInvalid   VerificationError = "street_number_invalid"
	ErrCodeStreetNumberMissing   VerificationError = "street_number_missing"
	ErrCodeSuiteInvalidMissing   VerificationError = "suite_invalid_missing"
	ErrCodeMissingMinimumInputs  VerificationError = "missing_minimum_inputs"
	ErrCodeNonDeliverableAddress VerificationError = "non_deliverable_address"
	ErrCodeUnknown               VerificationError = "unknown"
)

var knownVerificationErrors = map[VerificationError]struct{}{
	ErrCodeDisposable: {}, ErrCodePMBRequired: {}, ErrCodeRoleAddress: {}, ErrCodeSuiteInvalid: {},
	ErrCodeSuiteMissing: {}, ErrCodeInvalidFormat: {}, ErrCodeInvalidPrefix: {}, ErrCodeMultipleMatch: {},
	ErrCodeUnknownStreet: {}, ErrCodeZipCodeInvalid: {}, ErrCodeBlankPhoneNumber: {},
	ErrCodeBoxNumberInvalid: {}, ErrCodeBoxNumberMissing: {}, ErrCodeEmailDomainInvalid: {},
	ErrCodeInvalidPhoneNumber: {}, ErrCodeMailboxFullInvalid: {}, ErrCodeDirectionalsInvalid: {},
	ErrCodeEmailAccountInvalid: {}, ErrCodeEmailAddressInvalid: {}, ErrCodeStreetNumberInvalid: {},
	ErrCodeStreetNumberMissing: {}, ErrCodeSuiteInvalidMissing: {}, ErrCodeMissingMinimumInputs: {},
	ErrCodeNonDeliverableAddress: {}, ErrCodeUnknown: {},
}

// IsKnown reports whether e is a documented error code.
func (e VerificationError) IsKnown() bool {
	_, ok := knownVerificationErrors[e]
	return ok
}

func (e *VerificationError) UnmarshalJSON(data []byte) error {
	raw, err := decodeScalar(data)
	if err != nil {
		return err
	}
	v := normalizeToken(raw)
	if v == "" {
		v = string(ErrCodeUnknown)
	}
	*e = VerificationError(v)
	return nil
}

// ListState is the remote lifecycle state of a bulk verification list.
type ListState string

const (
	ListOpen                  ListState = "open"
	ListClosed                ListState = "closed"
	ListDeleted               ListState = "deleted"
	ListExpired               ListState = "expired"
	ListPending               ListState = "pending"
	ListPrepped               ListState = "prepped"
	ListSuccess               ListState = "success"
	ListComplete              ListState = "complete"
	ListNotFound              ListState = "not_found"
	ListDelivered             ListState = "delivered"
	ListVerifying             ListState = "verifying"
	ListTerminated            ListState = "terminated"
	ListImportError           ListState = "import_error"
	ListMissingData           ListState = "missing_data"
	ListExceedsLimit          ListState = "exceeds_limit"
	ListInvalidState          ListState = "invalid_state"
	ListDuplicateData         ListState = "duplicate_data"
	ListListUploadsIncomplete ListState = "list_uploads_incomplete"
	ListUnknown               ListState = "unknown"
)

var listStateAliases = map[string]ListState{
	"notfound":               ListNotFound,
	"importerror":            ListImportError,
	"exceedslimit":           ListExceedsLimit,
	"invalidstate":           ListInvalidState,
	"duplicatedata":          ListDuplicateData,
	"missing":                ListMissingData,
	"missingdata":            ListMissingData,
	"incomplete":             ListListUploadsIncomplete,
	"uploadincomplete":       ListListUploadsIncomplete,
	"uploadsincomplete":      ListListUploadsIncomplete,
	"upload_incomplete":      ListListUploadsIncomplete,
	"uploads_incomplete":     ListListUploadsIncomplete,
	"listuploadincomplete":   ListListUploadsIncomplete,
	"listuploadsincomplete":  ListListUploadsIncomplete,
	"list_upload_incomplete": ListListUploadsIncomplete,
}

var knownListStates = map[ListState]struct{}{
	ListOpen: {}, ListClosed: {}, ListDeleted: {}, ListExpired: {}, ListPending: {}, ListPrepped: {},
	ListSuccess: {}, ListComplete: {}, ListNotFound: {}, ListDelivered: {}, ListVerifying: {},
	ListTerminated: {}, ListImportError: {}, ListMissingData: {}, ListExceedsLimit: {},
	ListInvalidState: {}, ListDuplicateData: {}, ListListUploadsIncomplete: {}, ListUnknown: {},
}

// ParseListState normalizes quoting, case, dashes and the API's historical
// spellings ("importerror", "import-error") to one canonical value.
func ParseListState(value string) ListState {
	v := normalizeToken(value)
	if v == "" {
		return ListUnknown
	}
	if s, ok := listStateAliases[v]; ok {
		return s
	}
	return ListState(v)
}

// IsKnown reports whether s is a documented list state.
func (s ListState) IsKnown() bool {
	_, ok := knownListStates[s]
	return ok
}

func (s *ListState) UnmarshalJSON(data []byte) error {
	raw, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*s = ParseListState(raw)
	return nil
}

// Phase collapses the remote state into the job lifecycle.
func (s ListState) Phase() JobPhase {
	switch s {
	case ListOpen, ListClosed, ListPending, ListPrepped, ListSuccess:
		return PhaseQueued
	case ListComplete, ListDelivered:
		return PhaseComplete
	case ListVerifying:
		return PhaseProcessing
	}
	if !s.IsKnown() || s == ListUnknown {
		return PhaseProcessing
	}
	return PhaseError
}

// JobPhase is the client-side lifecycle of a bulk job. Phases only move forward:
// queued -> processing -> complete | error.
type JobPhase int

const (
	PhaseQueued JobPhase = iota
	PhaseProcessing
	PhaseComplete
	PhaseError
)

func (p JobPhase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseProcessing:
		return "processing"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (p JobPhase) Terminal() bool { return p == PhaseComplete || p == PhaseError }

// Directive instructs the API what to do with a list after a create or update.
type Directive string

const (
	DirectiveStart     Directive = "start"
	DirectiveTerminate Directive = "terminate"
)

func normalizeToken(value string) string {
	v := strings.Trim(strings.TrimSpace(value), `"'`)
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.ReplaceAll(v, "-", "_")
}

// decodeScalar accepts a JSON string, number, bool or null and returns its text.
func decodeScalar(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return strings.TrimSpace(string(data)), nil
	}
}
