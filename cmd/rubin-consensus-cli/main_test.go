package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunFromStdin_CreateCoinAndReserveFee(t *testing.T) {
	parent := strings.Repeat("01", 32)
	puzzleHash := strings.Repeat("02", 32)
	outputPuzzleHash := strings.Repeat("03", 32)

	reqJSON := `{
		"max_cost": 11000000000,
		"spends": [{
			"parent_coin_info": "` + parent + `",
			"puzzle_hash": "` + puzzleHash + `",
			"amount": 1100,
			"conditions": [
				{"opcode": 51, "args_hex": ["` + outputPuzzleHash + `", "03e8"]},
				{"opcode": 52, "args_hex": ["64"]}
			]
		}]
	}`

	var out bytes.Buffer
	code := runFromStdin(strings.NewReader(reqJSON), &out)
	if code != 0 {
		t.Fatalf("exit code = %d, stdout = %s", code, out.String())
	}

	var resp response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, out.String())
	}
	if !resp.Ok {
		t.Fatalf("expected ok, got err=%q", resp.Err)
	}
	if resp.SpendCount != 1 {
		t.Fatalf("spend_count = %d, want 1", resp.SpendCount)
	}
	if resp.ReserveFee != 100 {
		t.Fatalf("reserve_fee = %d, want 100", resp.ReserveFee)
	}
	if resp.RemovalAmount.Lo != 1100 {
		t.Fatalf("removal amount = %+v, want lo=1100", resp.RemovalAmount)
	}
	if resp.AdditionAmount.Lo != 1000 {
		t.Fatalf("addition amount = %+v, want lo=1000 (1000 create_coin + 0 hint bytes)", resp.AdditionAmount)
	}
}

func TestRunFromStdin_BadRequestJSON(t *testing.T) {
	var out bytes.Buffer
	code := runFromStdin(strings.NewReader("not json"), &out)
	if code == 0 {
		t.Fatalf("expected a non-zero exit code for malformed input")
	}
	var resp response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Ok {
		t.Fatalf("expected ok=false")
	}
}

func TestRunFromStdin_UnknownNetwork(t *testing.T) {
	reqJSON := `{"max_cost": 1000, "network": "nonexistent", "spends": []}`
	var out bytes.Buffer
	code := runFromStdin(strings.NewReader(reqJSON), &out)
	if code == 0 {
		t.Fatalf("expected a non-zero exit code for an unknown network")
	}
}

func TestRunFromStdin_BadPuzzleHashHex(t *testing.T) {
	reqJSON := `{"max_cost": 1000, "spends": [{"parent_coin_info": "` + strings.Repeat("00", 32) + `", "puzzle_hash": "zz", "amount": 1}]}`
	var out bytes.Buffer
	code := runFromStdin(strings.NewReader(reqJSON), &out)
	if code == 0 {
		t.Fatalf("expected a non-zero exit code for a malformed puzzle_hash")
	}
}
