package watcher

import "testing"

func TestSemanticHash_IgnoresVolatileFields(t *testing.T) {
	a := []byte("proxy:\n  port: 8045\nupdated-at: 2026-01-01T00:00:00Z\n")
	b := []byte("proxy:\n  port: 8045\nupdated-at: 2026-06-30T12:34:56Z\n")

	ha, err := semanticHash(a)
	if err != nil {
		t.Fatalf("semanticHash failed: %v", err)
	}
	hb, err := semanticHash(b)
	if err != nil {
		t.Fatalf("semanticHash failed: %v", err)
	}
	if ha != hb {
		t.Error("volatile field changed the hash")
	}
}

func TestSemanticHash_DetectsRealChanges(t *testing.T) {
	a := []byte("proxy:\n  port: 8045\n")
	b := []byte("proxy:\n  port: 9100\n")

	ha, _ := semanticHash(a)
	hb, _ := semanticHash(b)
	if ha == hb {
		t.Error("port change did not change the hash")
	}
}

func TestSemanticHash_InvalidYAMLFallsBack(t *testing.T) {
	h1, err := semanticHash([]byte("{{not yaml"))
	if err != nil {
		t.Fatalf("semanticHash should not error on invalid yaml: %v", err)
	}
	h2, _ := semanticHash([]byte("{{not yaml"))
	if h1 != h2 {
		t.Error("raw fallback hash not stable")
	}
}
