package corpus

import "testing"

func TestDocuments(t *testing.T) {
	docs := Documents()
	if len(docs) != 20 {
		t.Fatalf("expected 20 documents, got %d", len(docs))
	}

	seen := make(map[string]bool, len(docs))
	counts := map[string]int{}
	for i, d := range docs {
		if seen[d.ID] {
			t.Errorf("duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Text == "" {
			t.Errorf("document %d has empty text", i)
		}
		counts[d.Category]++
	}
	if docs[0].ID != "doc_0" || docs[19].ID != "doc_19" {
		t.Errorf("unexpected id scheme: %q .. %q", docs[0].ID, docs[19].ID)
	}
	if counts[CategoryDocker] != 7 || counts[CategoryPython] != 7 || counts[CategoryAWS] != 6 {
		t.Errorf("unexpected category distribution: %v", counts)
	}
}

func TestDocuments_ReturnsCopy(t *testing.T) {
	a := Documents()
	a[0].Text = "mutated"
	if Documents()[0].Text == "mutated" {
		t.Error("Documents must not expose shared state")
	}
}
