// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/canonical/sqlbuilder/internal/typeinfo"
)

// List runs the query and maps every row into a T. Struct types receive
// each column in the member named like its projection; columns matching no
// member are skipped and NULL leaves the member at its zero value. Any other
// type receives the first column.
func List[T any](q *Query) ([]T, error) {
	elems, err := q.collect(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return elems.Interface().([]T), nil
}

// One runs the query and maps the first row into a T as List does. It
// returns [ErrNoRows] if no results were found.
func One[T any](q *Query) (T, error) {
	var t T
	iter := q.Iter()
	if !iter.Next() {
		err := iter.Close()
		if err == nil {
			err = ErrNoRows
		}
		return t, err
	}
	err := iter.assign(reflect.ValueOf(&t).Elem())
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return t, err
}

// Scalar runs the query and returns the first column of the first row. It
// returns [ErrNoRows] if no results were found.
func Scalar[R any](q *Query) (R, error) {
	var r R
	iter := q.Iter()
	if !iter.Next() {
		err := iter.Close()
		if err == nil {
			err = ErrNoRows
		}
		return r, err
	}
	var err error
	if len(iter.raw) == 0 {
		err = invalidOperation("no result columns")
	} else if aerr := iter.opts.converters.Assign(reflect.ValueOf(&r).Elem(), iter.raw[0]); aerr != nil {
		err = errors.Wrap(aerr, "cannot get scalar result")
	}
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return r, err
}

// Fetcher reassembles root entities of type T with child collections from
// the rows of a flattened join, such as
//
//	SELECT s.id, s.name, i.id AS item_id, i.price
//	FROM stores s LEFT OUTER JOIN items i ON i.store_id=s.id
//
// Each row populates a root and, unless all its columns for a collection are
// NULL, adds one element to that collection. Rows are grouped by the
// identity K of their root.
//
// By default rows with the same identity are merged wherever they appear in
// the result. With GroupContiguous a new root is started whenever the
// identity differs from the previous row, so rows of one root must be
// contiguous (typically by ordering on the identity) or the root is returned
// more than once by List.
type Fetcher[T any, K comparable] struct {
	identity    func(*T) K
	rootMap     map[string]string
	collections []collectionSpec
	contiguous  bool
}

type collectionSpec struct {
	member  string
	projMap map[string]string
}

// NewFetcher returns a Fetcher computing the identity of roots with
// identity. rootMap maps projection names to members of T; when nil every
// projection not mapped to a collection is assigned to the member of T
// named like it.
func NewFetcher[T any, K comparable](identity func(*T) K, rootMap map[string]string) *Fetcher[T, K] {
	return &Fetcher[T, K]{identity: identity, rootMap: rootMap}
}

// AddCollection declares member, a slice member of T, as a child collection
// built from the projections in projMap. projMap maps projection names to
// members of the element type. For elements that are not structs, map a
// single projection to member itself.
func (f *Fetcher[T, K]) AddCollection(member string, projMap map[string]string) *Fetcher[T, K] {
	f.collections = append(f.collections, collectionSpec{member: member, projMap: projMap})
	return f
}

// GroupContiguous only groups rows of one root when they are adjacent.
func (f *Fetcher[T, K]) GroupContiguous() *Fetcher[T, K] {
	f.contiguous = true
	return f
}

// List runs the query and returns the roots in the order they are first met.
func (f *Fetcher[T, K]) List(q *Query) ([]T, error) {
	roots, _, _, err := f.fetch(q)
	if err != nil {
		return nil, err
	}
	res := make([]T, len(roots))
	for i, r := range roots {
		res[i] = *r
	}
	return res, nil
}

// Set runs the query and returns the roots by identity. Collections of roots
// met more than once are concatenated.
func (f *Fetcher[T, K]) Set(q *Query) (map[K]T, error) {
	roots, keys, colls, err := f.fetch(q)
	if err != nil {
		return nil, err
	}
	set := make(map[K]T, len(roots))
	for i, r := range roots {
		existing, ok := set[keys[i]]
		if !ok {
			set[keys[i]] = *r
			continue
		}
		ev := reflect.ValueOf(&existing).Elem()
		rv := reflect.ValueOf(r).Elem()
		for _, c := range colls {
			field := ev.FieldByIndex(c.member.Index)
			field.Set(reflect.AppendSlice(field, rv.FieldByIndex(c.member.Index)))
		}
		set[keys[i]] = existing
	}
	return set, nil
}

type boundColumn struct {
	index int
	// member is nil when the column is the whole element.
	member *typeinfo.Member
}

type boundCollection struct {
	member   *typeinfo.Member
	elemType reflect.Type
	elemPtr  bool
	columns  []boundColumn
}

// build returns the element of the collection held in the row, or false if
// all of its columns are NULL.
func (c *boundCollection) build(raw []any, conv *Converters) (reflect.Value, bool, error) {
	allNull := true
	for _, col := range c.columns {
		if raw[col.index] != nil {
			allNull = false
			break
		}
	}
	if allNull {
		return reflect.Value{}, false, nil
	}
	elem := reflect.New(c.elemType).Elem()
	for _, col := range c.columns {
		dst := elem
		if col.member != nil {
			dst = elem.FieldByIndex(col.member.Index)
		}
		if err := conv.Assign(dst, raw[col.index]); err != nil {
			return reflect.Value{}, false, errors.Wrapf(err, "cannot set element of %q", c.member.Name)
		}
	}
	if c.elemPtr {
		return elem.Addr(), true, nil
	}
	return elem, true, nil
}

func (f *Fetcher[T, K]) fetch(q *Query) ([]*T, []K, []*boundCollection, error) {
	if f.identity == nil {
		return nil, nil, nil, invalidArgument("fetcher has no identity function")
	}
	types := q.opts.types
	if types == nil {
		types = typeinfo.DefaultCache()
	}
	info, err := types.Info(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, nil, nil, invalidArgument("%s", err)
	}

	iter := q.Iter()
	if iter.err != nil {
		return nil, nil, nil, iter.err
	}
	defer iter.Close()

	columns := map[string]int{}
	for i, name := range iter.names {
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}
	columnIndex := func(proj string) (int, error) {
		i, ok := columns[proj]
		if !ok {
			return 0, invalidOperation("selected column %q does not exist in the result", proj)
		}
		return i, nil
	}

	claimed := map[string]bool{}
	var colls []*boundCollection
	for _, spec := range f.collections {
		c, err := bindCollection(types, info, spec, columnIndex)
		if err != nil {
			return nil, nil, nil, err
		}
		colls = append(colls, c)
		for proj := range spec.projMap {
			claimed[proj] = true
		}
	}

	var rootCols []boundColumn
	if f.rootMap == nil {
		for i, name := range iter.names {
			if claimed[name] {
				continue
			}
			if m, ok := info.Member(name); ok {
				rootCols = append(rootCols, boundColumn{index: i, member: m})
			}
		}
	} else {
		for proj, memberName := range f.rootMap {
			i, err := columnIndex(proj)
			if err != nil {
				return nil, nil, nil, err
			}
			m, ok := lookupMember(info, memberName)
			if !ok {
				return nil, nil, nil, invalidOperation("type %s has no member %q", info.Type.Name(), memberName)
			}
			rootCols = append(rootCols, boundColumn{index: i, member: m})
		}
	}

	conv := q.opts.converters
	var roots []*T
	var keys []K
	index := map[K]int{}
	last := -1
	for iter.Next() {
		root := new(T)
		rv := reflect.ValueOf(root).Elem()
		for _, col := range rootCols {
			if err := conv.Assign(rv.FieldByIndex(col.member.Index), iter.raw[col.index]); err != nil {
				return nil, nil, nil, errors.Wrapf(err, "cannot set member %q", col.member.Name)
			}
		}
		k := f.identity(root)

		cur, seen := -1, false
		if f.contiguous {
			seen = last >= 0 && keys[last] == k
			cur = last
		} else {
			cur, seen = index[k]
		}
		if !seen {
			for _, c := range colls {
				rv.FieldByIndex(c.member.Index).Set(reflect.MakeSlice(c.member.Type, 0, 0))
			}
			roots = append(roots, root)
			keys = append(keys, k)
			cur = len(roots) - 1
			index[k] = cur
		}
		last = cur

		target := reflect.ValueOf(roots[cur]).Elem()
		for _, c := range colls {
			elem, ok, err := c.build(iter.raw, conv)
			if err != nil {
				return nil, nil, nil, err
			}
			if ok {
				field := target.FieldByIndex(c.member.Index)
				field.Set(reflect.Append(field, elem))
			}
		}
	}
	if err := iter.Close(); err != nil {
		return nil, nil, nil, err
	}
	return roots, keys, colls, nil
}

func bindCollection(types *TypeCache, info *typeinfo.Info, spec collectionSpec, columnIndex func(string) (int, error)) (*boundCollection, error) {
	m, ok := lookupMember(info, spec.member)
	if !ok {
		return nil, invalidOperation("cannot set collection %q: type %s has no such member", spec.member, info.Type.Name())
	}
	if m.Type.Kind() != reflect.Slice {
		return nil, invalidOperation("cannot set collection %q: member is a %s, not a slice", spec.member, m.Type.Kind())
	}
	c := &boundCollection{member: m, elemType: m.Type.Elem()}
	if c.elemType.Kind() == reflect.Pointer && c.elemType.Elem().Kind() == reflect.Struct {
		c.elemType = c.elemType.Elem()
		c.elemPtr = true
	}

	var elemInfo *typeinfo.Info
	if c.elemType.Kind() == reflect.Struct && !isValueStruct(c.elemType) {
		var err error
		elemInfo, err = types.Info(c.elemType)
		if err != nil {
			return nil, invalidArgument("%s", err)
		}
	}
	for proj, memberName := range spec.projMap {
		i, err := columnIndex(proj)
		if err != nil {
			return nil, err
		}
		if elemInfo == nil {
			c.columns = append(c.columns, boundColumn{index: i})
			continue
		}
		em, ok := lookupMember(elemInfo, memberName)
		if !ok {
			return nil, invalidOperation("type %s has no member %q", elemInfo.Type.Name(), memberName)
		}
		c.columns = append(c.columns, boundColumn{index: i, member: em})
	}
	return c, nil
}

// lookupMember finds a member by column name or by Go field name.
func lookupMember(info *typeinfo.Info, name string) (*typeinfo.Member, bool) {
	if m, ok := info.Member(name); ok {
		return m, true
	}
	m := fieldMember(info, name)
	return m, m != nil
}
