package sig

// scanTopLevelSemicolons scans src starting at pos, tracking bracket
// nesting across ( ) { } [ ] < >, and reports how many ';' characters
// occur at nesting depth 0 before either the true end of the string
// (terminator == 0) or a depth-0 byte equal to terminator.
//
// This lets parseSignature decide, without a full parse, whether it is
// looking at a bare return type, a "fixed;ret" signature, or a
// "fixed;variadic;ret" signature, including when the whole signature
// is itself nested inside a "(" sig ")" function-pointer type.
func scanTopLevelSemicolons(src string, pos int, terminator byte) (count int, end int, err error) {
	depth := 0
	i := pos
	for i < len(src) {
		c := src[i]
		switch {
		case c == '(' || c == '{' || c == '[' || c == '<':
			depth++
		case c == ')' || c == '}' || c == ']' || c == '>':
			if depth == 0 {
				if terminator != 0 && c == terminator {
					return count, i, nil
				}
				return 0, 0, perr(i, ErrUnbalanced, "unmatched closing '"+string(c)+"'")
			}
			depth--
		case c == ';' && depth == 0:
			count++
		}
		i++
	}
	if depth != 0 {
		return 0, 0, perr(len(src), ErrUnexpectedEOF, "unclosed bracket")
	}
	if terminator != 0 {
		return 0, 0, perr(len(src), ErrUnexpectedEOF, "expected '"+string(terminator)+"'")
	}
	return count, len(src), nil
}
