// Package sig implements a hand-written recursive-descent parser for a
// compact textual type grammar: a single type expression, or a full
// call signature of fixed (and optionally variadic) argument types
// plus a return type. One arena is consumed per parse; every
// descriptor produced is owned by that arena and never outlives it.
package sig

import (
	"fmt"

	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/ctype"
)

// TypedefResolver resolves a bare IDENT type reference to a descriptor,
// the hook a host registers named/typedef'd types through. A parser
// with no resolver fails any IDENT it meets with UNEXPECTED_CHAR — the
// grammar never requires one to be present.
type TypedefResolver interface {
	Resolve(name string) (*ctype.Descriptor, error)
}

// Parser turns one signature string into a descriptor graph.
type Parser struct {
	s        *scanner
	arena    *arena.Arena
	resolver TypedefResolver
}

// New builds a Parser over signature, allocating descriptors in a.
func New(signature string, a *arena.Arena, resolver TypedefResolver) *Parser {
	return &Parser{s: newScanner(signature), arena: a, resolver: resolver}
}

// Parse parses a complete signature: "sig" := argList? ";" ret | ret,
// where argList may itself contain a ";"-separated variadic group.
// Returns the top-level Function descriptor.
func Parse(signature string, a *arena.Arena) (*ctype.Descriptor, error) {
	return New(signature, a, nil).Parse()
}

// ParseWithResolver is Parse with named/typedef'd types resolved by r.
func ParseWithResolver(signature string, a *arena.Arena, r TypedefResolver) (*ctype.Descriptor, error) {
	return New(signature, a, r).Parse()
}

// ParseType parses a single bare type expression, with no surrounding
// signature structure — used by callers that already know they only
// want one descriptor (e.g. a struct member embedded elsewhere).
func ParseType(typeExpr string, a *arena.Arena) (*ctype.Descriptor, error) {
	p := New(typeExpr, a, nil)
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.s.eof() {
		return nil, perr(p.s.pos, ErrUnexpectedChar, "trailing input after type")
	}
	return t, nil
}

func (p *Parser) Parse() (*ctype.Descriptor, error) {
	return p.parseSignature(0)
}

// parseSignature implements the "sig" production, terminated either by
// true end-of-input (terminator == 0) or by a depth-0 byte equal to
// terminator (used when parsing "(" sig ")" function-pointer types).
func (p *Parser) parseSignature(terminator byte) (*ctype.Descriptor, error) {
	count, _, err := scanTopLevelSemicolons(p.s.src, p.s.pos, terminator)
	if err != nil {
		return nil, err
	}

	switch count {
	case 0:
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expectTerminator(terminator); err != nil {
			return nil, err
		}
		return ctype.FunctionType(p.arena, ret, nil, 0)

	case 1:
		args, err := p.parseTypeList()
		if err != nil {
			return nil, err
		}
		if err := p.s.expect(';'); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expectTerminator(terminator); err != nil {
			return nil, err
		}
		return ctype.FunctionType(p.arena, ret, args, len(args))

	case 2:
		fixed, err := p.parseTypeList()
		if err != nil {
			return nil, err
		}
		if err := p.s.expect(';'); err != nil {
			return nil, err
		}
		variadic, err := p.parseTypeList()
		if err != nil {
			return nil, err
		}
		if err := p.s.expect(';'); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expectTerminator(terminator); err != nil {
			return nil, err
		}
		all := append(fixed, variadic...)
		return ctype.FunctionType(p.arena, ret, all, len(fixed))

	default:
		return nil, perr(p.s.pos, ErrUnbalanced, "too many top-level ';' in signature")
	}
}

func (p *Parser) expectTerminator(terminator byte) error {
	if terminator == 0 {
		if !p.s.eof() {
			return perr(p.s.pos, ErrUnexpectedChar, "trailing input after signature")
		}
		return nil
	}
	return p.s.expect(terminator)
}

// parseTypeList parses a comma-separated, non-empty list of types.
func (p *Parser) parseTypeList() ([]*ctype.Descriptor, error) {
	var list []*ctype.Descriptor
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		list = append(list, t)
		if p.s.peek() == ',' {
			p.s.advance()
			continue
		}
		break
	}
	return list, nil
}

// parseType implements the "type" production: prim | "*" type |
// "[" type ";" uint "]" | "{" field ("," field)* "}" |
// "<" field ("," field)* ">" | "(" sig ")" | IDENT.
func (p *Parser) parseType() (*ctype.Descriptor, error) {
	s := p.s
	if s.eof() {
		return nil, perr(s.pos, ErrUnexpectedEOF, "expected a type")
	}

	switch s.peek() {
	case '*':
		s.advance()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ctype.PointerType(p.arena, inner)

	case '[':
		s.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := s.expect(';'); err != nil {
			return nil, err
		}
		count, err := s.scanUint()
		if err != nil {
			return nil, err
		}
		if err := s.expect(']'); err != nil {
			return nil, err
		}
		return ctype.ArrayType(p.arena, elem, count)

	case '{':
		s.advance()
		b := ctype.StructBegin(p.arena)
		if err := p.parseFieldList(b, '}'); err != nil {
			return nil, err
		}
		return b.StructEnd(false)

	case '<':
		s.advance()
		b := ctype.UnionBegin(p.arena)
		if err := p.parseFieldList(b, '>'); err != nil {
			return nil, err
		}
		return b.UnionEnd()

	case '(':
		s.advance()
		fn, err := p.parseSignature(')')
		if err != nil {
			return nil, err
		}
		return ctype.PointerType(p.arena, fn)

	default:
		return p.parsePrimOrIdent()
	}
}

// parseFieldList parses one or more "field" := IDENT ":" type
// productions separated by ',', up to and consuming the closing byte.
func (p *Parser) parseFieldList(b *ctype.AggregateBuilder, closing byte) error {
	s := p.s
	for {
		name, off := s.scanIdent()
		if name == "" {
			return perr(s.pos, ErrUnexpectedChar, "expected a field name")
		}
		if err := s.expect(':'); err != nil {
			return err
		}
		t, err := p.parseType()
		if err != nil {
			return err
		}
		if err := b.AddMember(name, t); err != nil {
			return perr(off, ErrDuplicateField, name)
		}
		if s.peek() == ',' {
			s.advance()
			continue
		}
		break
	}
	return s.expect(closing)
}

// parsePrimOrIdent disambiguates a single reserved primitive letter
// (one of "vbcCsSiIlLqQfdezZp") from a longer identifier: a run of
// exactly one character matching a prim letter, not followed by
// another identifier character, is the primitive; anything longer is
// an IDENT resolved through the TypedefResolver.
func (p *Parser) parsePrimOrIdent() (*ctype.Descriptor, error) {
	s := p.s
	c := s.peek()
	if !isIdentStart(c) {
		return nil, perr(s.pos, ErrUnexpectedChar, fmt.Sprintf("unexpected %q", string(c)))
	}
	if isPrimLetter(c) && !isIdentCont(s.peekAt(1)) {
		s.advance()
		return primDescriptor(c), nil
	}

	ident, off := s.scanIdent()
	if p.resolver == nil {
		return nil, perr(off, ErrUnexpectedChar, "unresolved named type "+ident)
	}
	d, err := p.resolver.Resolve(ident)
	if err != nil {
		return nil, perr(off, ErrUnexpectedChar, err.Error())
	}
	return d, nil
}

func isPrimLetter(c byte) bool {
	switch c {
	case 'v', 'b', 'c', 'C', 's', 'S', 'i', 'I', 'l', 'L', 'q', 'Q', 'f', 'd', 'e', 'z', 'Z', 'p':
		return true
	}
	return false
}

// primDescriptor maps a single reserved letter to its shared static
// descriptor. "l"/"L" fold into the 64-bit kinds since every target
// this engine JITs for is LP64.
func primDescriptor(c byte) *ctype.Descriptor {
	switch c {
	case 'v':
		return ctype.VoidType()
	case 'b':
		return ctype.PrimitiveType(ctype.KindBool)
	case 'c':
		return ctype.PrimitiveType(ctype.KindS8)
	case 'C':
		return ctype.PrimitiveType(ctype.KindU8)
	case 's':
		return ctype.PrimitiveType(ctype.KindS16)
	case 'S':
		return ctype.PrimitiveType(ctype.KindU16)
	case 'i':
		return ctype.PrimitiveType(ctype.KindS32)
	case 'I':
		return ctype.PrimitiveType(ctype.KindU32)
	case 'l':
		return ctype.PrimitiveType(ctype.KindS64)
	case 'L':
		return ctype.PrimitiveType(ctype.KindU64)
	case 'q':
		return ctype.PrimitiveType(ctype.KindS64)
	case 'Q':
		return ctype.PrimitiveType(ctype.KindU64)
	case 'f':
		return ctype.PrimitiveType(ctype.KindF32)
	case 'd':
		return ctype.PrimitiveType(ctype.KindF64)
	case 'e':
		return ctype.PrimitiveType(ctype.KindF80)
	case 'z':
		return ctype.PrimitiveType(ctype.KindCString)
	case 'Z':
		return ctype.PrimitiveType(ctype.KindWString)
	case 'p':
		return ctype.PrimitiveType(ctype.KindOpaquePointer)
	default:
		panic("sig: unreachable prim letter " + string(c))
	}
}
