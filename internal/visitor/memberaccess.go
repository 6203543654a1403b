package visitor

import (
	"regexp"
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

// memberAccessCeiling is the most lines scanned per function regardless of
// the configured window.
const memberAccessCeiling = 100

const memberAccessConfidence = 0.8

var (
	dotAccess   = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\b`)
	arrowAccess = regexp.MustCompile(`\b([A-Za-z_]\w*)->([A-Za-z_]\w*)\b`)
	stringLit   = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	compoundOp  = regexp.MustCompile(`^(?:[-+*/%&|^]|<<|>>)?=`)

	// readPrefix: assignment right-hand sides, return values, arguments
	// and subscripts.
	readPrefix = regexp.MustCompile(`(?:[=(,\[!]|\breturn)\s*$`)

	// typeAnnotation: `name: pkg.T` in parameter lists and declarations.
	typeAnnotation = regexp.MustCompile(`(?:^|[(,]|\b(?:let|const|var|val|readonly|public|private|protected|static))\s*[A-Za-z_]\w*\??\s*:\s*$`)
	// declaredType: `name pkg.T`, `name *pkg.T`, `name []pkg.T`.
	declaredType = regexp.MustCompile(`\b([A-Za-z_]\w*)\s+[*&\[\]]*$`)
	// returnTypePos: `) pkg.T` and `-> pkg.T`.
	returnTypePos = regexp.MustCompile(`(?:\)\s+|->\s*)[*&\[\]]*$`)
	leadingWord   = regexp.MustCompile(`^[A-Za-z_]\w*`)
)

// operatorWords may sit next to an expression without making it a type.
var operatorWords = map[string]bool{
	"return": true, "if": true, "elif": true, "else": true, "then": true,
	"in": true, "is": true, "not": true, "and": true, "or": true,
	"case": true, "when": true, "match": true, "switch": true, "while": true, "for": true,
	"yield": true, "await": true, "throw": true, "go": true, "defer": true,
	"delete": true, "typeof": true, "sizeof": true, "range": true, "assert": true,
	"echo": true, "print": true, "instanceof": true, "unless": true, "until": true, "do": true,
}

const readFollowers = ";)]}:,=+-*/%<>!&|^?{["

var implicitReceivers = map[string]bool{"this": true, "self": true, "super": true}

// memberAccess scans the leading lines of each function for field reads and
// writes on other objects.
func (w *walker) memberAccess() {
	window := min(w.v.opts.MemberAccessWindow, memberAccessCeiling)
	lines := w.hctx.Lines
	var prefixes []string
	if w.hctx.Spec != nil {
		prefixes = w.hctx.Spec.CommentPrefixes
	}

	for _, sym := range w.callable {
		if w.ctx.Err() != nil {
			return
		}
		if sym.Line < 1 || sym.Line > len(lines) {
			continue
		}
		end := sym.EndLine
		if end < sym.Line || end > len(lines) {
			end = len(lines)
		}
		end = min(end, sym.Line+window-1)
		seen := map[string]bool{}
		for i := sym.Line - 1; i < end; i++ {
			for _, acc := range scanMemberAccess(lines[i], prefixes) {
				key := string(acc.kind) + "|" + acc.object + "." + acc.member
				if seen[key] {
					continue
				}
				seen[key] = true
				w.res.Relationships = append(w.res.Relationships, model.Relationship{
					FromName:   sym.QualifiedName,
					ToName:     acc.object + "." + acc.member,
					Type:       acc.kind,
					Confidence: memberAccessConfidence,
					LineNumber: i + 1,
					Metadata: map[string]any{
						"object":     acc.object,
						"member":     acc.member,
						"accessType": accessTypeName(acc.kind),
						"pointer":    acc.pointer,
					},
				})
			}
		}
	}
}

type memberAcc struct {
	object  string
	member  string
	kind    model.RelationshipType
	pointer bool
}

func accessTypeName(t model.RelationshipType) string {
	if t == model.RelWritesField {
		return "write"
	}
	return "read"
}

// scanMemberAccess classifies every obj.member and obj->member on one line.
// Method calls, declarations and type positions are ignored; a remaining
// access is a write when an assignment follows it and a read when it sits in
// read position.
func scanMemberAccess(line string, commentPrefixes []string) []memberAcc {
	trimmed := strings.TrimSpace(line)
	for _, p := range commentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return nil
		}
	}
	line = stringLit.ReplaceAllString(line, `""`)
	if idx := strings.Index(line, "//"); idx >= 0 {
		line = line[:idx]
	}

	var out []memberAcc
	collect := func(re *regexp.Regexp, pointer bool) {
		for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
			obj, member := line[m[2]:m[3]], line[m[4]:m[5]]
			if implicitReceivers[obj] {
				continue
			}
			if m[0] > 0 && (line[m[0]-1] == '.' || line[m[0]-1] == '>') {
				continue
			}
			prefix := line[:m[0]]
			rest := strings.TrimLeft(line[m[1]:], " \t")
			if strings.HasPrefix(rest, "(") || strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "->") {
				continue
			}
			if typePosition(prefix, rest) {
				continue
			}
			var kind model.RelationshipType
			switch {
			case compoundOp.MatchString(rest) && !strings.HasPrefix(rest, "=="):
				kind = model.RelWritesField
			case readPosition(prefix, rest):
				kind = model.RelReadsField
			default:
				continue
			}
			out = append(out, memberAcc{object: obj, member: member, kind: kind, pointer: pointer})
		}
	}
	collect(dotAccess, false)
	collect(arrowAccess, true)
	return out
}

// typePosition reports whether an access between prefix and rest is really
// a qualified type name: a parameter or variable type, an annotation or a
// return type.
func typePosition(prefix, rest string) bool {
	if typeAnnotation.MatchString(prefix) || returnTypePos.MatchString(prefix) {
		return true
	}
	if m := declaredType.FindStringSubmatch(prefix); m != nil && !operatorWords[m[1]] {
		return true
	}
	if w := leadingWord.FindString(rest); w != "" && !operatorWords[w] {
		return true
	}
	return false
}

func readPosition(prefix, rest string) bool {
	if readPrefix.MatchString(prefix) {
		return true
	}
	if rest == "" || strings.ContainsRune(readFollowers, rune(rest[0])) {
		return true
	}
	return operatorWords[leadingWord.FindString(rest)]
}
