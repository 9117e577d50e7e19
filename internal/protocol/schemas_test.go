package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	frameSchema := compile("frame.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "sample_every":16
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "tick_rate_hz":60,
	  "agents":10000
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var frame any
	_ = json.Unmarshal([]byte(`{
	  "type":"FRAME",
	  "tick":412,
	  "step_ms":3.2,
	  "stage_ms":{"separation_ms":0.8,"integrate_ms":1.1},
	  "agents":10000,
	  "repaths_used":12,
	  "los_checks_used":64,
	  "direct_chase_count":31,
	  "yielding_count":4,
	  "avg_path_age_sec":0.7,
	  "samples":[
	    {"id":0,"pos":[100,200,0],"vel":[12,-3],"has_path":true,"has_los":false,"yielding":false,"stuck":false}
	  ]
	}`), &frame)
	validate(frameSchema, frame)
}

func TestSchemas_RejectBadFrame(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "frame.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var frame any
	_ = json.Unmarshal([]byte(`{"type":"FRAME","tick":-1,"step_ms":1,"agents":0}`), &frame)
	if err := s.Validate(frame); err == nil {
		t.Fatalf("negative tick should not validate")
	}
}
