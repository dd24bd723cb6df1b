package infix

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"strings"
)

// DiscoverSignatures walks a shared object's DWARF debug info and
// produces a best-guess textual signature for every exported
// subprogram it can fully resolve. It is a convenience layered on top
// of, not a replacement for, hand-written signature strings —
// functions whose parameter or return types DWARF doesn't resolve to
// a supported primitive/pointer shape are omitted rather than guessed
// at.
func DiscoverSignatures(soPath string) (map[string]string, error) {
	f, err := elf.Open(soPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, soPath, err)
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return map[string]string{}, nil // no debug info is not an error
	}

	out := make(map[string]string)
	reader := data.Reader()
	depth := 0
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("infix: DiscoverSignatures: %v", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag == 0 {
			// A null entry closes the innermost open DIE.
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > maxIncludeDepth {
			break
		}
		if entry.Tag == dwarf.TagSubprogram {
			name, sigStr, ok := discoverOneFunction(entry, reader, data)
			if ok {
				out[name] = sigStr
			}
			continue
		}
		if entry.Children {
			depth++
		}
	}
	return out, nil
}

func discoverOneFunction(entry *dwarf.Entry, reader *dwarf.Reader, data *dwarf.Data) (name, signature string, ok bool) {
	nameAttr, _ := entry.Val(dwarf.AttrName).(string)
	if nameAttr == "" {
		return "", "", false
	}
	if external, _ := entry.Val(dwarf.AttrExternal).(bool); !external {
		return "", "", false
	}

	retChar, retOK := "v", true
	if typeAttr := entry.Val(dwarf.AttrType); typeAttr != nil {
		off, isOff := typeAttr.(dwarf.Offset)
		if !isOff {
			return "", "", false
		}
		retChar, retOK = dwarfCharFor(off, data)
		if !retOK {
			return "", "", false
		}
	}

	var args []string
	if entry.Children {
		for {
			child, err := reader.Next()
			if err != nil || child == nil || child.Tag == 0 {
				break
			}
			if child.Tag == dwarf.TagFormalParameter {
				typeAttr := child.Val(dwarf.AttrType)
				off, isOff := typeAttr.(dwarf.Offset)
				if !isOff {
					return "", "", false
				}
				c, ok := dwarfCharFor(off, data)
				if !ok {
					return "", "", false
				}
				args = append(args, c)
			}
			if child.Children {
				reader.SkipChildren()
			}
		}
	}

	if len(args) == 0 {
		return nameAttr, retChar, true
	}
	sigStr := ""
	for i, a := range args {
		if i > 0 {
			sigStr += ","
		}
		sigStr += a
	}
	return nameAttr, sigStr + ";" + retChar, true
}

// dwarfCharFor maps a DWARF base/pointer type to a signature grammar
// letter, following only the forms the marshalling core fully
// supports; anything else reports !ok so the caller drops that
// function rather than emitting a wrong guess.
func dwarfCharFor(offset dwarf.Offset, data *dwarf.Data) (string, bool) {
	reader := data.Reader()
	reader.Seek(offset)
	entry, err := reader.Next()
	if err != nil || entry == nil {
		return "", false
	}

	switch entry.Tag {
	case dwarf.TagPointerType:
		return "p", true
	case dwarf.TagBaseType:
		name, _ := entry.Val(dwarf.AttrName).(string)
		size, _ := entry.Val(dwarf.AttrByteSize).(int64)
		switch {
		case name == "_Bool" || name == "bool":
			return "b", true
		case name == "float":
			return "f", true
		case name == "double":
			return "d", true
		case size == 1:
			if isUnsignedDwarfName(name) {
				return "C", true
			}
			return "c", true
		case size == 2:
			if isUnsignedDwarfName(name) {
				return "S", true
			}
			return "s", true
		case size == 4:
			if isUnsignedDwarfName(name) {
				return "I", true
			}
			return "i", true
		case size == 8:
			if isUnsignedDwarfName(name) {
				return "Q", true
			}
			return "q", true
		}
	}
	return "", false
}

func isUnsignedDwarfName(name string) bool {
	for _, want := range []string{"unsigned", "size_t", "uint"} {
		if strings.Contains(name, want) {
			return true
		}
	}
	return false
}
