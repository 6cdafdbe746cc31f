// Package ir models the three-address method bodies produced by the bytecode
// front end and loads them from their JSON interchange form.
package ir

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMethod marks a method body whose branch targets fall outside
	// the body or whose instructions carry null operands.
	ErrMalformedMethod = errors.New("malformed method")

	// ErrSchema marks an IR document that fails schema validation.
	ErrSchema = errors.New("ir schema violation")
)

// Op is the kind of an instruction.
type Op string

const (
	OpAssign   Op = "assign"
	OpIdentity Op = "identity"
	OpInvoke   Op = "invoke"
	OpIf       Op = "if"
	OpSwitch   Op = "switch"
	OpGoto     Op = "goto"
	OpReturn   Op = "return"
	OpOther    Op = "other"
)

// ValueKind is the kind of an operand.
type ValueKind string

const (
	KindLocal       ValueKind = "local"
	KindInt         ValueKind = "int"
	KindString      ValueKind = "string"
	KindNull        ValueKind = "null"
	KindField       ValueKind = "field"
	KindStaticField ValueKind = "static_field"
	KindCast        ValueKind = "cast"
	KindNew         ValueKind = "new"
	KindInvoke      ValueKind = "invoke"
	KindThis        ValueKind = "this"
	KindParam       ValueKind = "param"
	KindOther       ValueKind = "other"
)

// Program is every class the front end emitted for one application.
type Program struct {
	Classes []*Class `json:"classes"`
}

// Class is a declared class and its concrete methods.
type Class struct {
	Name    string    `json:"name"`
	Super   string    `json:"super,omitempty"`
	Methods []*Method `json:"methods"`
}

// Method is a method signature plus its linear instruction list. Branch
// targets are indices into Body.
type Method struct {
	Signature string   `json:"signature"`
	Name      string   `json:"name"`
	Class     string   `json:"-"`
	Body      []*Instr `json:"body"`
}

// Instr is one three-address instruction. Which fields are set depends on Op.
type Instr struct {
	Op      Op          `json:"op"`
	LHS     *Value      `json:"lhs,omitempty"`
	RHS     *Value      `json:"rhs,omitempty"`
	Invoke  *InvokeExpr `json:"invoke,omitempty"`
	Cond    *Cond       `json:"cond,omitempty"`
	Key     *Value      `json:"key,omitempty"`
	Cases   []Case      `json:"cases,omitempty"`
	Default *int        `json:"default,omitempty"`
	Target  *int        `json:"target,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Cond is a binary comparison guarding an if.
type Cond struct {
	Op    string `json:"op"`
	Left  *Value `json:"left"`
	Right *Value `json:"right"`
}

// Case is one arm of a lookup switch.
type Case struct {
	Value  int64 `json:"value"`
	Target int   `json:"target"`
}

// Value is an operand or expression.
type Value struct {
	Kind    ValueKind   `json:"kind"`
	Name    string      `json:"name,omitempty"`
	Type    string      `json:"type,omitempty"`
	Int     int64       `json:"int,omitempty"`
	Str     string      `json:"str,omitempty"`
	Base    *Value      `json:"base,omitempty"`
	Field   *FieldRef   `json:"field,omitempty"`
	Operand *Value      `json:"operand,omitempty"`
	Invoke  *InvokeExpr `json:"invoke,omitempty"`
}

// FieldRef names a declared field.
type FieldRef struct {
	Class string `json:"class"`
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
}

// MethodRef names a callee.
type MethodRef struct {
	Class  string   `json:"class"`
	Name   string   `json:"name"`
	Return string   `json:"return"`
	Params []string `json:"params,omitempty"`
}

// InvokeExpr is a call expression.
type InvokeExpr struct {
	Kind   string    `json:"kind"`
	Base   *Value    `json:"base,omitempty"`
	Method MethodRef `json:"method"`
	Args   []*Value  `json:"args,omitempty"`
}

// Call returns the invoke expression carried by the instruction, either as a
// bare call statement or as the right-hand side of an assignment.
func (i *Instr) Call() *InvokeExpr {
	if i.Invoke != nil {
		return i.Invoke
	}
	if i.RHS != nil && i.RHS.Kind == KindInvoke {
		return i.RHS.Invoke
	}
	return nil
}

// IsAssign reports whether the instruction is an assignment.
func (i *Instr) IsAssign() bool {
	return i.Op == OpAssign && i.LHS != nil && i.RHS != nil
}

// DefinedLocal returns the local written by the instruction, if any.
func (i *Instr) DefinedLocal() (string, bool) {
	if (i.Op == OpAssign || i.Op == OpIdentity) && i.LHS != nil && i.LHS.Kind == KindLocal {
		return i.LHS.Name, true
	}
	return "", false
}

// Targets returns every branch target of the instruction.
func (i *Instr) Targets() []int {
	var out []int
	if i.Target != nil {
		out = append(out, *i.Target)
	}
	for _, c := range i.Cases {
		out = append(out, c.Target)
	}
	if i.Default != nil {
		out = append(out, *i.Default)
	}
	return out
}

// IsLocal reports whether v is the named local.
func (v *Value) IsLocal(name string) bool {
	return v != nil && v.Kind == KindLocal && v.Name == name
}

// Is reports whether the callee has the given name and argument count.
func (e *InvokeExpr) Is(name string, argc int) bool {
	return e != nil && e.Method.Name == name && len(e.Args) == argc
}

// Validate checks that every branch target is inside the body and that no
// instruction carries a null operand.
func (m *Method) Validate() error {
	n := len(m.Body)
	for idx, ins := range m.Body {
		if ins == nil || !ins.wellFormed() {
			return &OperandError{Signature: m.Signature, Index: idx}
		}
		for _, t := range ins.Targets() {
			if t < 0 || t >= n {
				return &MethodError{Signature: m.Signature, Index: idx, Target: t}
			}
		}
	}
	return nil
}

// MethodError reports an out-of-range branch target.
type MethodError struct {
	Signature string
	Index     int
	Target    int
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("malformed method %s: instruction %d jumps to %d", e.Signature, e.Index, e.Target)
}

// Unwrap lets errors.Is match ErrMalformedMethod.
func (e *MethodError) Unwrap() error {
	return ErrMalformedMethod
}

// OperandError reports an instruction that is null or has a null operand.
type OperandError struct {
	Signature string
	Index     int
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("malformed method %s: instruction %d has a null operand", e.Signature, e.Index)
}

// Unwrap lets errors.Is match ErrMalformedMethod.
func (e *OperandError) Unwrap() error {
	return ErrMalformedMethod
}

func (i *Instr) wellFormed() bool {
	if (i.Op == OpAssign || i.Op == OpIdentity) && (i.LHS == nil || i.RHS == nil) {
		return false
	}
	if i.Cond != nil && (i.Cond.Left == nil || i.Cond.Right == nil) {
		return false
	}
	return i.LHS.wellFormed() && i.RHS.wellFormed() && i.Key.wellFormed() &&
		i.Invoke.wellFormed() && (i.Cond == nil || i.Cond.Left.wellFormed() && i.Cond.Right.wellFormed())
}

// wellFormed reports whether no nested operand is null. A nil receiver is an
// absent optional operand.
func (v *Value) wellFormed() bool {
	if v == nil {
		return true
	}
	return v.Base.wellFormed() && v.Operand.wellFormed() && v.Invoke.wellFormed()
}

func (e *InvokeExpr) wellFormed() bool {
	if e == nil {
		return true
	}
	for _, a := range e.Args {
		if a == nil || !a.wellFormed() {
			return false
		}
	}
	return e.Base.wellFormed()
}

// Methods returns every method of the program in declaration order.
func (p *Program) Methods() []*Method {
	var out []*Method
	for _, c := range p.Classes {
		out = append(out, c.Methods...)
	}
	return out
}

// Lookup indexes methods by signature.
func (p *Program) Lookup() map[string]*Method {
	idx := make(map[string]*Method)
	for _, c := range p.Classes {
		for _, m := range c.Methods {
			idx[m.Signature] = m
		}
	}
	return idx
}
