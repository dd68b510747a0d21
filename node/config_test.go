package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePeers(t *testing.T) {
	got := NormalizePeers("127.0.0.1:19111, 127.0.0.1:19112", "127.0.0.1:19111", " ", "10.0.0.1:19111")
	want := []string{"127.0.0.1:19111", "127.0.0.1:19112", "10.0.0.1:19111"}
	if len(got) != len(want) {
		t.Fatalf("len=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d got=%q want=%q", i, got[i], want[i])
		}
	}
}

func TestValidateConfigOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = []string{"127.0.0.1:19111"}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigRejectsBadBind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BindAddr = "127.0.0.1"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsBadPeer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = []string{"bad-peer"}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConsensusConstantsForNetwork(t *testing.T) {
	mainnet, err := ConsensusConstantsForNetwork("mainnet")
	if err != nil {
		t.Fatalf("mainnet: %v", err)
	}
	devnet, err := ConsensusConstantsForNetwork("DevNet")
	if err != nil {
		t.Fatalf("devnet: %v", err)
	}
	if mainnet == devnet {
		t.Fatalf("expected distinct constants for mainnet vs devnet")
	}
	if _, err := ConsensusConstantsForNetwork("nonexistent"); err == nil {
		t.Fatalf("expected an error for an unknown network")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	const name = "rubin.json"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(`{"network":"mainnet","max_peers":10}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFile(dir, name)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Network != "mainnet" || cfg.MaxPeers != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.BindAddr == "" {
		t.Fatalf("expected defaults to survive partial JSON overlay")
	}
}

func TestLoadConfigFileRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfigFile(dir, "../escape.json"); err == nil {
		t.Fatalf("expected traversal rejection")
	}
}
