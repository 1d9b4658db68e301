package siteconfig

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Fields a document carries that this version does not model are kept in the
// Extra map of the enclosing type and written back on encode.

var knownKeysCache sync.Map // reflect.Type -> map[string]struct{}

func knownKeys(t reflect.Type) map[string]struct{} {
	if v, ok := knownKeysCache.Load(t); ok {
		return v.(map[string]struct{})
	}
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	knownKeysCache.Store(t, keys)
	return keys
}

func unknownFields(data []byte, t reflect.Type) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	known := knownKeys(t)
	var extra map[string]json.RawMessage
	for k, v := range fields {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := fields[k]; ok {
			continue
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func (n NavItem) MarshalJSON() ([]byte, error) {
	type plain NavItem
	return marshalWithExtra(plain(n), n.Extra)
}

func (n *NavItem) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain NavItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	*n = NavItem(p)
	return nil
}

func (n NavbarConfig) MarshalJSON() ([]byte, error) {
	type plain NavbarConfig
	return marshalWithExtra(plain(n), n.Extra)
}

func (n *NavbarConfig) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain NavbarConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	*n = NavbarConfig(p)
	return nil
}

func (b HeroButton) MarshalJSON() ([]byte, error) {
	type plain HeroButton
	return marshalWithExtra(plain(b), b.Extra)
}

func (b *HeroButton) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain HeroButton
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	*b = HeroButton(p)
	return nil
}

func (h HeroConfig) MarshalJSON() ([]byte, error) {
	type plain HeroConfig
	return marshalWithExtra(plain(h), h.Extra)
}

func (h *HeroConfig) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain HeroConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	*h = HeroConfig(p)
	return nil
}

func (c SiteConfig) MarshalJSON() ([]byte, error) {
	type plain SiteConfig
	return marshalWithExtra(plain(c), c.Extra)
}

func (c *SiteConfig) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain SiteConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	p.Extra = extra
	*c = SiteConfig(p)
	return nil
}
