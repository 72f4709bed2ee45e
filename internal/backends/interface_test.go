package backends

import "testing"

func TestMigrationScriptID(t *testing.T) {
	m := &MigrationScript{Version: "20260102150405", Name: "add_person", Graph: "core"}
	if got := m.ID(); got != "20260102150405_add_person_core" {
		t.Errorf("Expected 20260102150405_add_person_core, got %s", got)
	}
}

func TestConnectionConfigEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		config ConnectionConfig
		want   string
	}{
		{"defaults", ConnectionConfig{}, "ws://localhost:8182/gremlin"},
		{"explicit host and port", ConnectionConfig{Host: "graph.internal", Port: "8183"}, "ws://graph.internal:8183/gremlin"},
		{"tls", ConnectionConfig{Host: "graph.internal", TLS: true}, "wss://graph.internal:8182/gremlin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Endpoint(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
