package cart

import "testing"

func TestSelectionSetQueries(t *testing.T) {
	items := []CartLineItem{
		item("a1", "A", "Eziobodo", 100, 1),
		item("a2", "A", "Eziobodo", 100, 1),
		item("b1", "B", "Umuchima", 100, 1),
	}
	groups := Partition(items, nil)
	sel := SelectIDs("a1", "b1", "stale")

	pruned := sel.Prune(items)
	if _, ok := pruned["stale"]; ok {
		t.Fatal("stale key should be pruned")
	}
	if pruned.Count() != 2 {
		t.Fatalf("expected 2 selected, got %d", pruned.Count())
	}
	if !pruned.HasSelection(groups[0]) || pruned.FullySelected(groups[0]) {
		t.Fatal("vendor A should be partially selected")
	}
	if !pruned.FullySelected(groups[1]) {
		t.Fatal("vendor B should be fully selected")
	}
	if got := pruned.SelectedItems(items); len(got) != 2 || got[0].ID != "a1" || got[1].ID != "b1" {
		t.Fatalf("unexpected selected items %+v", got)
	}
	if pruned.FullySelected(VendorGroup{}) {
		t.Fatal("empty group is never fully selected")
	}
}

func TestEffectiveSelectionSingleVendorPolicy(t *testing.T) {
	items := []CartLineItem{
		item("a1", "A", "Eziobodo", 100, 1),
		item("a2", "A", "Eziobodo", 100, 1),
	}
	groups := Partition(items, nil)

	on := EffectiveSelection(groups, SelectIDs("a1"), DefaultSelectionPolicy())
	if on.Count() != 2 {
		t.Fatalf("single vendor cart should be implicitly fully selected, got %d", on.Count())
	}

	off := EffectiveSelection(groups, SelectIDs("a1"), SelectionPolicy{})
	if off.Count() != 1 || !off.IsSelected("a1") {
		t.Fatalf("policy off should keep granular selection, got %+v", off)
	}

	multi := Partition(append(items, item("b1", "B", "", 100, 1)), nil)
	got := EffectiveSelection(multi, SelectIDs("b1"), DefaultSelectionPolicy())
	if got.Count() != 1 {
		t.Fatalf("multi vendor cart must not be overridden, got %+v", got)
	}
}
