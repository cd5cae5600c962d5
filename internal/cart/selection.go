package cart

// SelectionSet marks which line items the customer wants in the current checkout pass.
// A nil set selects nothing.
type SelectionSet map[string]bool

// SelectAll builds a set selecting every given item.
func SelectAll(items []CartLineItem) SelectionSet {
	set := make(SelectionSet, len(items))
	for _, item := range items {
		set[item.ID] = true
	}
	return set
}

// SelectIDs builds a set from explicit ids.
func SelectIDs(ids ...string) SelectionSet {
	set := make(SelectionSet, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Prune returns a copy holding only keys present in the cart.
func (s SelectionSet) Prune(items []CartLineItem) SelectionSet {
	pruned := make(SelectionSet, len(s))
	for _, item := range items {
		if v, ok := s[item.ID]; ok {
			pruned[item.ID] = v
		}
	}
	return pruned
}

func (s SelectionSet) IsSelected(id string) bool {
	return s[id]
}

// SelectedItems filters items to the selected ones, keeping order.
func (s SelectionSet) SelectedItems(items []CartLineItem) []CartLineItem {
	out := make([]CartLineItem, 0, len(items))
	for _, item := range items {
		if s[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

// HasSelection reports whether at least one of the group's items is selected.
func (s SelectionSet) HasSelection(g VendorGroup) bool {
	for _, item := range g.Items {
		if s[item.ID] {
			return true
		}
	}
	return false
}

// FullySelected reports whether every item of a non-empty group is selected.
func (s SelectionSet) FullySelected(g VendorGroup) bool {
	if len(g.Items) == 0 {
		return false
	}
	for _, item := range g.Items {
		if !s[item.ID] {
			return false
		}
	}
	return true
}

// Count is the number of selected keys.
func (s SelectionSet) Count() int {
	n := 0
	for _, v := range s {
		if v {
			n++
		}
	}
	return n
}

// SelectionPolicy holds the named overrides applied before pricing.
type SelectionPolicy struct {
	// ImplicitSingleVendor treats a cart with exactly one vendor group as fully
	// selected regardless of the granular selection.
	ImplicitSingleVendor bool
}

// DefaultSelectionPolicy matches storefront behavior.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{ImplicitSingleVendor: true}
}

// EffectiveSelection prunes sel against the grouped cart and applies the policy.
func EffectiveSelection(groups []VendorGroup, sel SelectionSet, policy SelectionPolicy) SelectionSet {
	if policy.ImplicitSingleVendor && len(groups) == 1 {
		return SelectAll(groups[0].Items)
	}
	return sel.Prune(AllItems(groups))
}
