package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: queue
    type: SQS
    sqs:
      uri: " http://localhost:4566/000000000000/results "
      region: us-east-1
      endpoint: http://localhost:4566
      access_key_id: test
      secret_access_key: test
  - id: gcp
    type: pubsub
    pubsub:
      project_id: demo
      topic: results
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "queue" || enabled[1].ID != "gcp" {
		t.Fatalf("expected queue and gcp enabled, got %#v", enabled)
	}
	q, ok := reg.ByID("queue")
	if !ok || q.Type != TypeSQS {
		t.Fatalf("ByID(queue) = %#v, %v", q, ok)
	}
	if q.SQS.QueueURL != "http://localhost:4566/000000000000/results" || q.SQS.Endpoint != "http://localhost:4566" || q.SQS.AccessKeyID != "test" {
		t.Fatalf("inline aws settings not decoded: %#v", q.SQS)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publishers.json")
	raw := `{"publishers":[{"id":"topic","type":"sns","sns":{"topic_arn":"arn:aws:sns:us-east-1:1:results","region":"us-east-1"}}]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if all := reg.All(); len(all) != 1 || all[0].SNS == nil || all[0].SNS.TopicARN == "" {
		t.Fatalf("unexpected registry: %#v", all)
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := map[string]PublisherConfig{
		"missing http block": {ID: "h1", Type: TypeHTTP},
		"missing topic arn":  {ID: "s1", Type: TypeSNS, SNS: &SNSPublisherConfig{Region: "us-east-1"}},
		"half credentials": {ID: "q1", Type: TypeSQS, SQS: &SQSPublisherConfig{
			QueueURL: "https://q", Region: "us-east-1", AWSAuth: AWSAuth{AccessKeyID: "only-key"},
		}},
		"missing project": {ID: "g1", Type: TypePubSub, PubSub: &PubSubPublisherConfig{Topic: "t"}},
		"unknown status filter": {ID: "h2", Type: TypeHTTP, Statuses: []string{"valid", "maybe"},
			HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := cfg.sanitized().validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadRegistryExpandsEnvAndFilters(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "publishers.yml")
	raw := `
publishers:
  - id: invalid-hook
    type: http
    statuses: [invalid, " accept_all "]
    http:
      url: https://hooks.example.com/bv
      headers:
        Authorization: Bearer ${HOOK_TOKEN}
        X-Empty: ""
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cfg, ok := reg.ByID("invalid-hook")
	if !ok {
		t.Fatalf("invalid-hook missing")
	}
	if got := cfg.HTTP.Headers["Authorization"]; got != "Bearer s3cret" {
		t.Fatalf("Authorization = %q", got)
	}
	if _, kept := cfg.HTTP.Headers["X-Empty"]; kept || cfg.HTTP.Method != "POST" || cfg.HTTP.TimeoutSeconds != 5 {
		t.Fatalf("http defaults not applied: %#v", cfg.HTTP)
	}
	if len(cfg.Statuses) != 2 || cfg.Statuses[1] != "accept_all" {
		t.Fatalf("statuses = %#v", cfg.Statuses)
	}
}

func TestLoadRegistryRejectsDuplicatesAndUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	dup := filepath.Join(dir, "dup.yaml")
	raw := "publishers:\n  - {id: a, type: http, http: {url: https://x}}\n  - {id: a, type: http, http: {url: https://y}}\n"
	if err := os.WriteFile(dup, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadRegistry(dup); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	toml := filepath.Join(dir, "publishers.toml")
	if err := os.WriteFile(toml, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadRegistry(toml); err == nil {
		t.Fatalf("expected extension error")
	}
}
