package briteverify

import (
	"encoding/json"
	"testing"
)

func TestParseListStateAliases(t *testing.T) {
	cases := map[string]ListState{
		"open":                    ListOpen,
		"  Complete ":             ListComplete,
		"import-error":            ListImportError,
		"importerror":             ListImportError,
		"IMPORT_ERROR":            ListImportError,
		"notfound":                ListNotFound,
		"not-found":               ListNotFound,
		"list-uploads-incomplete": ListListUploadsIncomplete,
		"uploadsincomplete":       ListListUploadsIncomplete,
		`"verifying"`:             ListVerifying,
		"":                        ListUnknown,
		"reticulating":            ListState("reticulating"),
	}
	for in, want := range cases {
		if got := ParseListState(in); got != want {
			t.Fatalf("ParseListState(%q) = %q, want %q", in, got, want)
		}
	}
	if ListState("reticulating").IsKnown() {
		t.Fatalf("unrecognized state reported as known")
	}
}

func TestListStatePhase(t *testing.T) {
	cases := map[ListState]JobPhase{
		ListOpen:          PhaseQueued,
		ListClosed:        PhaseQueued,
		ListPending:       PhaseQueued,
		ListPrepped:       PhaseQueued,
		ListSuccess:       PhaseQueued,
		ListVerifying:     PhaseProcessing,
		ListUnknown:       PhaseProcessing,
		ListState("new"):  PhaseProcessing,
		ListComplete:      PhaseComplete,
		ListDelivered:     PhaseComplete,
		ListTerminated:    PhaseError,
		ListDeleted:       PhaseError,
		ListExpired:       PhaseError,
		ListImportError:   PhaseError,
		ListNotFound:      PhaseError,
		ListMissingData:   PhaseError,
		ListExceedsLimit:  PhaseError,
		ListDuplicateData: PhaseError,
	}
	for state, want := range cases {
		if got := state.Phase(); got != want {
			t.Fatalf("%s.Phase() = %s, want %s", state, got, want)
		}
	}
	if PhaseQueued.Terminal() || PhaseProcessing.Terminal() {
		t.Fatalf("non-terminal phase reported terminal")
	}
	if !PhaseComplete.Terminal() || !PhaseError.Terminal() {
		t.Fatalf("terminal phase reported non-terminal")
	}
}

func TestVerificationStatusUnmarshal(t *testing.T) {
	var got []VerificationStatus
	if err := json.Unmarshal([]byte(`["valid","accept-all","ACCEPT_ALL","invalid","unknown",null,"greylisted"]`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []VerificationStatus{StatusValid, StatusAcceptAll, StatusAcceptAll, StatusInvalid, StatusUnknown, StatusUnknown, "greylisted"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if got[6].IsKnown() {
		t.Fatalf("greylisted must not be a known status")
	}
	if !StatusAcceptAll.Risky() {
		t.Fatalf("accept_all should be risky")
	}
}

func TestVerificationErrorUnmarshalKeepsUnknownCodes(t *testing.T) {
	var got []VerificationError
	if err := json.Unmarshal([]byte(`["invalid_phone_number","suite-missing","brand_new_code"]`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got[0] != ErrCodeInvalidPhoneNumber || got[1] != ErrCodeSuiteMissing {
		t.Fatalf("unexpected codes %v", got)
	}
	if got[2] != "brand_new_code" || got[2].IsKnown() {
		t.Fatalf("unknown code not preserved: %q", got[2])
	}
}
