package ir

import (
	"fmt"
	"strings"
)

// ParseSignature splits "<pkg.Class: ret name(p1,p2)>" into its parts.
func ParseSignature(sig string) (MethodRef, error) {
	s := strings.TrimSpace(sig)
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return MethodRef{}, fmt.Errorf("signature %q: missing angle brackets", sig)
	}
	s = s[1 : len(s)-1]
	colon := strings.Index(s, ": ")
	if colon < 0 {
		return MethodRef{}, fmt.Errorf("signature %q: missing class separator", sig)
	}
	ref := MethodRef{Class: s[:colon]}
	rest := s[colon+2:]

	open := strings.Index(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return MethodRef{}, fmt.Errorf("signature %q: missing parameter list", sig)
	}
	head := strings.Fields(rest[:open])
	if len(head) != 2 {
		return MethodRef{}, fmt.Errorf("signature %q: expected return type and name", sig)
	}
	ref.Return, ref.Name = head[0], head[1]
	if params := rest[open+1 : len(rest)-1]; params != "" {
		ref.Params = strings.Split(params, ",")
	}
	return ref, nil
}

// ClassOf returns the declaring class of a signature, or "" when the text is
// not a signature.
func ClassOf(sig string) string {
	start := strings.Index(sig, "<")
	end := strings.Index(sig, ":")
	if start < 0 || end < start {
		return ""
	}
	return sig[start+1 : end]
}

// ExtractSignature returns the first balanced "<...>" span of an instruction
// text, which is the callee for invoke statements.
func ExtractSignature(text string) string {
	start := strings.Index(text, "<")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
