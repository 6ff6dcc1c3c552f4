package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, key string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "ApiKey: "+key)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return resp.StatusCode, out
}

func TestAuthorizeRejectsWrongKey(t *testing.T) {
	srv := newTestServer(t, Options{APIKey: "secret"})

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v3/accounts/credits", "wrong", nil)
	if status != http.StatusUnauthorized || body["status"] != "unauthorized" {
		t.Fatalf("wrong key: %d %v", status, body)
	}
	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v3/accounts/credits", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("missing key: %d", status)
	}
	status, body = doJSON(t, http.MethodGet, srv.URL+"/api/v3/accounts/credits", "secret", nil)
	if status != http.StatusOK || body["credits"].(float64) != defaultCredits {
		t.Fatalf("credits: %d %v", status, body)
	}
}

func TestFullVerifyIsDeterministic(t *testing.T) {
	srv := newTestServer(t, Options{})

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/fullverify", "k", Contact{
		Email:   "info@example.com",
		Phone:   "+1 (555) 010-0002",
		Address: &Address{Address1: "12 main st", City: "Springfield", State: "IL", Zip: "62701"},
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d %v", status, body)
	}
	email := body["email"].(map[string]any)
	if email["status"] != "valid" || email["role_address"] != true {
		t.Fatalf("email = %v", email)
	}
	phone := body["phone"].(map[string]any)
	if phone["number"] != "15550100002" || phone["service_type"] != "mobile" {
		t.Fatalf("phone = %v", phone)
	}
	addr := body["address"].(map[string]any)
	if addr["address1"] != "12 MAIN ST" || addr["corrected"] != "true" {
		t.Fatalf("address = %v", addr)
	}
	if _, ok := body["duration"].(float64); !ok {
		t.Fatalf("duration missing: %v", body)
	}

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/fullverify", "k", Contact{})
	if status != http.StatusBadRequest {
		t.Fatalf("empty contact status = %d", status)
	}
}

func TestListLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{CompleteAfter: 2, PageSize: 2})
	base := srv.URL + "/api/v3"

	status, body := doJSON(t, http.MethodPost, base+"/lists", "k", listRequest{
		Contacts: []Contact{{Email: "a@example.com"}, {Email: "bounce@example.com"}},
	})
	if status != http.StatusCreated {
		t.Fatalf("create = %d %v", status, body)
	}
	list := body["list"].(map[string]any)
	id := list["id"].(string)
	if list["state"] != "open" || list["page_count"] != nil {
		t.Fatalf("new list = %v", list)
	}

	status, body = doJSON(t, http.MethodPost, base+"/lists/"+id, "k", listRequest{
		Contacts:  []Contact{{Phone: "555"}},
		Directive: "start",
	})
	if status != http.StatusOK || body["list"].(map[string]any)["state"] != "pending" {
		t.Fatalf("append+start = %d %v", status, body)
	}

	status, body = doJSON(t, http.MethodGet, base+"/lists/"+id+"/export/1", "k", nil)
	if status != http.StatusBadRequest || body["status"] != "invalid_state" {
		t.Fatalf("early export = %d %v", status, body)
	}

	_, body = doJSON(t, http.MethodGet, base+"/lists/"+id, "k", nil)
	if body["state"] != "verifying" {
		t.Fatalf("first poll = %v", body)
	}
	_, body = doJSON(t, http.MethodGet, base+"/lists/"+id, "k", nil)
	if body["state"] != "complete" || body["page_count"].(float64) != 2 {
		t.Fatalf("second poll = %v", body)
	}

	_, body = doJSON(t, http.MethodGet, base+"/lists/"+id+"/export/1", "k", nil)
	rows := body["results"].([]any)
	if body["num_pages"] != "2" || len(rows) != 2 {
		t.Fatalf("page 1 = %v", body)
	}
	if row := rows[1].(map[string]any); row["email"] != "bounce@example.com" || row["status"] != "invalid" {
		t.Fatalf("flat email row = %v", row)
	}
	_, body = doJSON(t, http.MethodGet, base+"/lists/"+id+"/export/2", "k", nil)
	phone := body["results"].([]any)[0].(map[string]any)["phone"].(map[string]any)
	if phone["status"] != "invalid" || phone["secondary_status"] != "invalid_phone_number" {
		t.Fatalf("phone row = %v", phone)
	}
	status, _ = doJSON(t, http.MethodGet, base+"/lists/"+id+"/export/3", "k", nil)
	if status != http.StatusNotFound {
		t.Fatalf("page 3 status = %d", status)
	}

	status, body = doJSON(t, http.MethodDelete, base+"/lists/"+id, "k", nil)
	if status != http.StatusOK || body["list"].(map[string]any)["state"] != "deleted" {
		t.Fatalf("delete = %d %v", status, body)
	}
	status, body = doJSON(t, http.MethodGet, base+"/lists/"+id, "k", nil)
	if status != http.StatusNotFound || body["status"] != "not_found" {
		t.Fatalf("status after delete = %d %v", status, body)
	}
}

func TestFailStateAndDirectives(t *testing.T) {
	srv := newTestServer(t, Options{FailState: "import_error"})
	base := srv.URL + "/api/v3"

	_, body := doJSON(t, http.MethodPost, base+"/lists", "k", listRequest{
		Contacts:  []Contact{{Email: "a@example.com"}},
		Directive: "start",
	})
	list := body["list"].(map[string]any)
	if list["state"] != "import_error" || list["errors"] == nil {
		t.Fatalf("failed list = %v", list)
	}

	_, body = doJSON(t, http.MethodPost, base+"/lists", "k", listRequest{Contacts: []Contact{{Email: "b@example.com"}}})
	id := body["list"].(map[string]any)["id"].(string)
	_, body = doJSON(t, http.MethodPost, base+"/lists/"+id, "k", listRequest{Directive: "terminate"})
	if body["list"].(map[string]any)["state"] != "terminated" {
		t.Fatalf("terminate = %v", body)
	}
	status, _ := doJSON(t, http.MethodPost, base+"/lists/"+id, "k", listRequest{Directive: "start"})
	if status != http.StatusBadRequest {
		t.Fatalf("start after terminate = %d", status)
	}
	status, _ = doJSON(t, http.MethodPost, base+"/lists/"+id, "k", listRequest{Directive: "rewind"})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown directive = %d", status)
	}
}

func TestListListsFiltersAndPages(t *testing.T) {
	srv := newTestServer(t, Options{})
	base := srv.URL + "/api/v3"

	for range 12 {
		doJSON(t, http.MethodPost, base+"/lists", "k", listRequest{Contacts: []Contact{{Email: "a@example.com"}}})
	}
	doJSON(t, http.MethodPost, base+"/accounts/acct-1/lists", "k", listRequest{Contacts: []Contact{{Email: "a@example.com"}}})

	_, body := doJSON(t, http.MethodGet, base+"/lists?page=2", "k", nil)
	if body["message"] != "Page 2 of 2" || len(body["lists"].([]any)) != 3 {
		t.Fatalf("page 2 = %v", body)
	}
	_, body = doJSON(t, http.MethodGet, base+"/accounts/acct-1/lists", "k", nil)
	lists := body["lists"].([]any)
	if len(lists) != 1 || lists[0].(map[string]any)["account_external_id"] != "acct-1" {
		t.Fatalf("account lists = %v", body)
	}
	_, body = doJSON(t, http.MethodGet, base+"/lists?state=complete", "k", nil)
	if len(body["lists"].([]any)) != 0 {
		t.Fatalf("state filter = %v", body)
	}
}
