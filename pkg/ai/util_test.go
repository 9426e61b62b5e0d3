package ai

import "testing"

type parsedSummary struct {
	Summary     string   `json:"summary"`
	KeyEntities []string `json:"key_entities"`
}

func TestUnmarshalFlexibleValidJSON(t *testing.T) {
	var out parsedSummary
	err := UnmarshalFlexible(`{"summary":"a band of smugglers","key_entities":["Vex","Harbor"]}`, &out)
	if err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if out.Summary != "a band of smugglers" {
		t.Errorf("Summary = %q", out.Summary)
	}
	if len(out.KeyEntities) != 2 {
		t.Errorf("KeyEntities = %v, want 2 names", out.KeyEntities)
	}
}

func TestUnmarshalFlexibleDoubleEncoded(t *testing.T) {
	var out parsedSummary
	err := UnmarshalFlexible(`"{\"summary\":\"nested\",\"key_entities\":[]}"`, &out)
	if err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if out.Summary != "nested" {
		t.Errorf("Summary = %q, want %q", out.Summary, "nested")
	}
}

func TestUnmarshalFlexibleRepairsMalformedJSON(t *testing.T) {
	// trailing comma and unquoted key, typical model output damage
	var out parsedSummary
	err := UnmarshalFlexible(`{summary: "repaired", "key_entities": ["Vex",],}`, &out)
	if err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if out.Summary != "repaired" {
		t.Errorf("Summary = %q, want %q", out.Summary, "repaired")
	}
	if len(out.KeyEntities) != 1 || out.KeyEntities[0] != "Vex" {
		t.Errorf("KeyEntities = %v, want [Vex]", out.KeyEntities)
	}
}

func TestUnmarshalFlexibleDuplicateLeadingBrace(t *testing.T) {
	var out parsedSummary
	err := UnmarshalFlexible(`{ {"summary":"double brace","key_entities":[]}`, &out)
	if err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if out.Summary != "double brace" {
		t.Errorf("Summary = %q, want %q", out.Summary, "double brace")
	}
}

func TestUnmarshalFlexibleUnrecoverable(t *testing.T) {
	var out parsedSummary
	if err := UnmarshalFlexible(`not even close to json`, &out); err == nil {
		t.Fatal("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestGenerateSchemaFromStruct(t *testing.T) {
	schema := GenerateSchema(parsedSummary{})
	if schema == nil {
		t.Fatal("GenerateSchema() returned nil")
	}

	ptrSchema := GenerateSchema(&parsedSummary{})
	if ptrSchema == nil {
		t.Fatal("GenerateSchema() returned nil for pointer input")
	}
}
