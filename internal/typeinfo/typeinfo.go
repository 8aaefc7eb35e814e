// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// Member is a named, settable member of a struct type.
type Member struct {
	// Name is the column name of the member: its "db" tag if it has one,
	// otherwise the Go field name.
	Name string

	// Field is the Go name of the struct field.
	Field string

	// Index of the field, for reflect.Value.FieldByIndex.
	Index []int

	Type reflect.Type

	// OmitEmpty is true when "omitempty" is an option of the "db" tag.
	OmitEmpty bool
}

// Get returns the value of the member in the struct s.
func (m *Member) Get(s reflect.Value) reflect.Value {
	return reflect.Indirect(s).FieldByIndex(m.Index)
}

// Set assigns v to the member in the struct s, which must be addressable.
func (m *Member) Set(s reflect.Value, v reflect.Value) {
	reflect.Indirect(s).FieldByIndex(m.Index).Set(v)
}

// Info is the reflected member information of a struct type.
type Info struct {
	Type reflect.Type

	// Members in field declaration order.
	Members []*Member

	byName map[string]*Member
}

// Member looks up a member by name. A member whose name starts with an
// underscore is also found under the name without it, unless another member
// owns that name.
func (info *Info) Member(name string) (*Member, bool) {
	m, ok := info.byName[name]
	return m, ok
}

// Names returns the member names in declaration order.
func (info *Info) Names() []string {
	names := make([]string, len(info.Members))
	for i, m := range info.Members {
		names[i] = m.Name
	}
	return names
}

// Cache holds the Info of every struct type it has been asked about. Entries
// are generated on first use and never invalidated. A Cache is safe for
// concurrent use.
type Cache struct {
	mu    sync.RWMutex
	infos map[reflect.Type]*Info
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{infos: make(map[reflect.Type]*Info)}
}

var defaultCache = NewCache()

// DefaultCache returns the process wide Cache.
func DefaultCache() *Cache {
	return defaultCache
}

// TypeInfo returns the Info of the struct type of value, which may be a
// struct, a pointer to one or a reflect.Type.
func (c *Cache) TypeInfo(value any) (*Info, error) {
	if value == nil {
		return nil, fmt.Errorf("cannot reflect nil value")
	}
	t, ok := value.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(value)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return c.Info(t)
}

// Info returns the Info of the struct type t, generating and caching it as
// required.
func (c *Cache) Info(t reflect.Type) (*Info, error) {
	c.mu.RLock()
	info, found := c.infos[t]
	c.mu.RUnlock()
	if found {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Another goroutine may have got here first; keep a single Info per type.
	if existing, ok := c.infos[t]; ok {
		info = existing
	} else {
		c.infos[t] = info
	}
	c.mu.Unlock()

	return info, nil
}

// generate produces the reflection information for the struct type t.
func generate(t reflect.Type) (*Info, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("can only reflect struct type, got %s", t.Kind())
	}

	info := &Info{
		Type:   t,
		byName: make(map[string]*Member),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name := field.Name
		var omitEmpty bool
		if tag != "" {
			var err error
			name, omitEmpty, err = parseTag(tag)
			if err != nil {
				return nil, fmt.Errorf("cannot parse tag for field %s.%s: %s", t.Name(), field.Name, err)
			}
		}
		if _, ok := info.byName[name]; ok {
			return nil, fmt.Errorf("member name %q used more than once in struct %s", name, t.Name())
		}
		m := &Member{
			Name:      name,
			Field:     field.Name,
			Index:     field.Index,
			Type:      field.Type,
			OmitEmpty: omitEmpty,
		}
		info.Members = append(info.Members, m)
		info.byName[name] = m
	}

	// Fold "_name" into "name" where nothing else claims it.
	for _, m := range info.Members {
		if !strings.HasPrefix(m.Name, "_") {
			continue
		}
		short := m.Name[1:]
		if _, ok := info.byName[short]; !ok && short != "" {
			info.byName[short] = m
		}
	}

	return info, nil
}

var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses the input tag string and returns its
// name and whether it contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	// Refuse to parse if there are more than 2 items.
	if len(options) > 2 {
		return "", false, fmt.Errorf("too many options in 'db' tag")
	}
	if len(options) == 2 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, fmt.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	name := options[0]
	if len(name) == 0 {
		return "", false, fmt.Errorf("empty db tag")
	}

	if !validColNameRx.MatchString(name) {
		return "", false, fmt.Errorf("invalid column name in 'db' tag")
	}

	return name, omitEmpty, nil
}
