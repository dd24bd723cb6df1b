package ctype

import (
	"fmt"

	"github.com/xyproto/infix/internal/arena"
)

// AggregateBuilder accumulates members for a struct or union under
// construction, through a begin/add-member/end operation triple.
type AggregateBuilder struct {
	a       *arena.Arena
	members []Member
	seen    map[string]bool
	union   bool
}

// StructBegin starts building a struct in arena a.
func StructBegin(a *arena.Arena) *AggregateBuilder {
	return &AggregateBuilder{a: a, seen: map[string]bool{}}
}

// UnionBegin starts building a union in arena a.
func UnionBegin(a *arena.Arena) *AggregateBuilder {
	return &AggregateBuilder{a: a, seen: map[string]bool{}, union: true}
}

// AddMember appends a named field. Duplicate names fail with
// ErrDuplicateField, the same sentinel the signature parser raises
// for a duplicate struct field, since the constraint is identical for
// both the parser and this constructor API.
func (b *AggregateBuilder) AddMember(name string, t *Descriptor) error {
	if b.seen[name] {
		return fmt.Errorf("%w: %q", ErrDuplicateField, name)
	}
	b.seen[name] = true
	b.members = append(b.members, Member{Name: b.a.InternString(name), Type: t})
	return nil
}

// StructEnd computes offsets, total size and alignment per ordinary C
// struct layout rules, and interns member names in the arena (already
// done incrementally by AddMember). packed suppresses the alignment
// padding between members and the trailing size rounding.
//
// Fails with ErrInvalidLayout if any member has size 0, except a
// flexible array member (Category == Array, Count == 0) in the final
// position.
func (b *AggregateBuilder) StructEnd(packed bool) (*Descriptor, error) {
	if b.union {
		return nil, fmt.Errorf("%w: StructEnd called on a union builder", ErrInvalidLayout)
	}
	if err := checkMemberSizes(b.members); err != nil {
		return nil, err
	}

	offset := 0
	maxAlign := 1
	for i := range b.members {
		m := &b.members[i]
		align := 1
		if !packed {
			align = m.Type.Alignment
			if align <= 0 {
				align = 1
			}
		}
		if align > maxAlign {
			maxAlign = align
		}
		pad := (align - (offset % align)) % align
		offset += pad
		m.Offset = offset
		offset += m.Type.Size
	}

	total := offset
	if !packed && maxAlign > 0 {
		rem := total % maxAlign
		if rem != 0 {
			total += maxAlign - rem
		}
	}
	if packed {
		maxAlign = 1
	}

	d, err := allocDescriptor(b.a)
	if err != nil {
		return nil, err
	}
	d.Category = Struct
	d.Members = b.members
	d.Packed = packed
	d.Size = total
	d.Alignment = maxAlign
	return d, nil
}

// UnionEnd computes the union layout: every member at offset 0, size
// is the maximum member size rounded to the overall alignment, and
// alignment is the maximum member alignment. Fails with
// ErrDuplicateField-style checks already enforced by AddMember, and
// ErrInvalidLayout on a zero-size member.
func (b *AggregateBuilder) UnionEnd() (*Descriptor, error) {
	if !b.union {
		return nil, fmt.Errorf("%w: UnionEnd called on a struct builder", ErrInvalidLayout)
	}
	if err := checkMemberSizes(b.members); err != nil {
		return nil, err
	}

	maxSize, maxAlign := 0, 1
	for i := range b.members {
		b.members[i].Offset = 0
		if b.members[i].Type.Size > maxSize {
			maxSize = b.members[i].Type.Size
		}
		if b.members[i].Type.Alignment > maxAlign {
			maxAlign = b.members[i].Type.Alignment
		}
	}
	if maxAlign > 0 {
		rem := maxSize % maxAlign
		if rem != 0 {
			maxSize += maxAlign - rem
		}
	}

	d, err := allocDescriptor(b.a)
	if err != nil {
		return nil, err
	}
	d.Category = Union
	d.Members = b.members
	d.Size = maxSize
	d.Alignment = maxAlign
	return d, nil
}

func checkMemberSizes(members []Member) error {
	for i, m := range members {
		flexible := m.Type.Category == Array && m.Type.Count == 0
		if flexible && i != len(members)-1 {
			return fmt.Errorf("%w: flexible array member %q must be last", ErrInvalidLayout, m.Name)
		}
		if m.Type.Size == 0 && !flexible {
			return fmt.Errorf("%w: member %q has size 0", ErrInvalidLayout, m.Name)
		}
	}
	return nil
}
