package siteconfig

// AddNavItem appends a link and returns it. Empty fields get the editor
// defaults ("New Link", "#", left).
func (n *NavbarConfig) AddNavItem(title, link string, align Alignment) NavItem {
	if title == "" {
		title = "New Link"
	}
	if link == "" {
		link = "#"
	}
	if align == "" {
		align = AlignLeft
	}
	item := NavItem{ID: newID(), Title: title, Link: link, Alignment: align}
	n.NavItems = append(n.NavItems, item)
	return item
}

// UpdateNavItem applies fn to the item with the given id.
func (n *NavbarConfig) UpdateNavItem(id string, fn func(*NavItem)) bool {
	for i := range n.NavItems {
		if n.NavItems[i].ID == id {
			fn(&n.NavItems[i])
			n.NavItems[i].ID = id
			return true
		}
	}
	return false
}

// RemoveNavItem deletes the item with the given id.
func (n *NavbarConfig) RemoveNavItem(id string) bool {
	for i := range n.NavItems {
		if n.NavItems[i].ID == id {
			n.NavItems = append(n.NavItems[:i], n.NavItems[i+1:]...)
			return true
		}
	}
	return false
}

// MoveNavItem swaps the item with its neighbour; delta is -1 (up) or 1 (down).
// It reports false when the item is missing or already at the edge.
func (n *NavbarConfig) MoveNavItem(id string, delta int) bool {
	if delta != -1 && delta != 1 {
		return false
	}
	for i := range n.NavItems {
		if n.NavItems[i].ID != id {
			continue
		}
		j := i + delta
		if j < 0 || j >= len(n.NavItems) {
			return false
		}
		n.NavItems[i], n.NavItems[j] = n.NavItems[j], n.NavItems[i]
		return true
	}
	return false
}

// AddButton appends a hero button. The first button is primary and the
// second secondary. A third is rejected with ErrTooManyButtons.
func (h *HeroConfig) AddButton(text, link string) (HeroButton, error) {
	if len(h.Buttons) >= MaxHeroButtons {
		return HeroButton{}, ErrTooManyButtons
	}
	if text == "" {
		text = "New Button"
	}
	if link == "" {
		link = "#"
	}
	variant := VariantSecondary
	if len(h.Buttons) == 0 {
		variant = VariantPrimary
	}
	b := HeroButton{ID: newID(), Text: text, Link: link, Variant: variant}
	h.Buttons = append(h.Buttons, b)
	return b, nil
}

// UpdateButton applies fn to the button with the given id.
func (h *HeroConfig) UpdateButton(id string, fn func(*HeroButton)) bool {
	for i := range h.Buttons {
		if h.Buttons[i].ID == id {
			fn(&h.Buttons[i])
			h.Buttons[i].ID = id
			return true
		}
	}
	return false
}

// RemoveButton deletes the button with the given id.
func (h *HeroConfig) RemoveButton(id string) bool {
	for i := range h.Buttons {
		if h.Buttons[i].ID == id {
			h.Buttons = append(h.Buttons[:i], h.Buttons[i+1:]...)
			return true
		}
	}
	return false
}
