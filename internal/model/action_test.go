package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSetCategoryAction_Apply(t *testing.T) {
	txn := expenseTxn("x", "10")
	action := &SetCategoryAction{CategoryID: 4}

	action.Apply(txn)
	if txn.CategoryID == nil || *txn.CategoryID != 4 {
		t.Fatalf("CategoryID = %v, want 4", txn.CategoryID)
	}

	// A later set-category action overwrites, last wins.
	(&SetCategoryAction{CategoryID: 9}).Apply(txn)
	if *txn.CategoryID != 9 {
		t.Errorf("CategoryID = %d, want 9", *txn.CategoryID)
	}
}

func TestAddTagAction_Apply(t *testing.T) {
	txn := expenseTxn("x", "10")

	(&AddTagAction{Tag: "subscription"}).Apply(txn)
	(&AddTagAction{Tag: "entertainment"}).Apply(txn)
	(&AddTagAction{Tag: "subscription"}).Apply(txn)

	want := []string{"entertainment", "subscription"}
	if !reflect.DeepEqual(txn.Tags, want) {
		t.Errorf("Tags = %v, want %v", txn.Tags, want)
	}
}

func TestSetNotesAction_Apply(t *testing.T) {
	txn := expenseTxn("x", "10")
	txn.Notes = "original"

	(&SetNotesAction{Notes: "first"}).Apply(txn)
	(&SetNotesAction{Notes: "second"}).Apply(txn)

	if txn.Notes != "second" {
		t.Errorf("Notes = %q, want %q", txn.Notes, "second")
	}
}

func TestActions_RoundTrip(t *testing.T) {
	original := Actions{
		&SetCategoryAction{CategoryID: 3},
		&AddTagAction{Tag: "fixed-cost"},
		&SetNotesAction{Notes: "auto-tagged"},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored Actions
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	txnA := expenseTxn("x", "10")
	txnB := expenseTxn("x", "10")
	for _, action := range original {
		action.Apply(txnA)
	}
	for _, action := range restored {
		action.Apply(txnB)
	}

	if !reflect.DeepEqual(txnA.CategoryID, txnB.CategoryID) ||
		!reflect.DeepEqual(txnA.Tags, txnB.Tags) || txnA.Notes != txnB.Notes {
		t.Errorf("restored actions mutate differently: %+v vs %+v", txnA, txnB)
	}
}

func TestActions_UnknownTypeIsNoOp(t *testing.T) {
	data := `[{"type":"send_webhook","url":"https://example.com"}]`

	var actions Actions
	if err := json.Unmarshal([]byte(data), &actions); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("decoded %d actions, want 1", len(actions))
	}

	txn := expenseTxn("x", "10")
	before := *txn
	actions[0].Apply(txn)
	if txn.CategoryID != nil || len(txn.Tags) != 0 || txn.Notes != before.Notes {
		t.Error("unknown action mutated the transaction")
	}
}
