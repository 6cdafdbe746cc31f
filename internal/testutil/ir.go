package testutil

import (
	"github.com/droidkg/droidkg/pkg/ir"
)

// Local is a local variable operand.
func Local(name string) *ir.Value {
	return &ir.Value{Kind: ir.KindLocal, Name: name}
}

// TypedLocal is a local with a declared type.
func TypedLocal(name, typ string) *ir.Value {
	return &ir.Value{Kind: ir.KindLocal, Name: name, Type: typ}
}

// Int is an int constant.
func Int(v int64) *ir.Value {
	return &ir.Value{Kind: ir.KindInt, Int: v}
}

// Str is a string constant.
func Str(s string) *ir.Value {
	return &ir.Value{Kind: ir.KindString, Str: s}
}

// Field is an instance field access on base.
func Field(base *ir.Value, class, name, typ string) *ir.Value {
	return &ir.Value{Kind: ir.KindField, Base: base, Field: &ir.FieldRef{Class: class, Name: name, Type: typ}}
}

// Cast wraps v in a cast to typ.
func Cast(typ string, v *ir.Value) *ir.Value {
	return &ir.Value{Kind: ir.KindCast, Type: typ, Operand: v}
}

// New is an allocation of typ.
func New(typ string) *ir.Value {
	return &ir.Value{Kind: ir.KindNew, Type: typ}
}

// This is the receiver identity value.
func This(typ string) *ir.Value {
	return &ir.Value{Kind: ir.KindThis, Type: typ}
}

// Call builds an invoke expression.
func Call(kind string, base *ir.Value, class, ret, name string, params []string, args ...*ir.Value) *ir.InvokeExpr {
	return &ir.InvokeExpr{
		Kind:   kind,
		Base:   base,
		Method: ir.MethodRef{Class: class, Name: name, Return: ret, Params: params},
		Args:   args,
	}
}

// Assign is lhs = rhs.
func Assign(lhs, rhs *ir.Value) *ir.Instr {
	return &ir.Instr{Op: ir.OpAssign, LHS: lhs, RHS: rhs}
}

// AssignCall is lhs = call.
func AssignCall(lhs *ir.Value, call *ir.InvokeExpr) *ir.Instr {
	return &ir.Instr{Op: ir.OpAssign, LHS: lhs, RHS: &ir.Value{Kind: ir.KindInvoke, Invoke: call}}
}

// Invoke is a call statement.
func Invoke(call *ir.InvokeExpr) *ir.Instr {
	return &ir.Instr{Op: ir.OpInvoke, Invoke: call}
}

// Identity is lhs := rhs.
func Identity(lhs, rhs *ir.Value) *ir.Instr {
	return &ir.Instr{Op: ir.OpIdentity, LHS: lhs, RHS: rhs}
}

// If is "if left op right goto target".
func If(op string, left, right *ir.Value, target int) *ir.Instr {
	return &ir.Instr{Op: ir.OpIf, Cond: &ir.Cond{Op: op, Left: left, Right: right}, Target: &target}
}

// Switch is a lookup switch on key.
func Switch(key *ir.Value, def int, cases ...ir.Case) *ir.Instr {
	return &ir.Instr{Op: ir.OpSwitch, Key: key, Cases: cases, Default: &def}
}

// Goto is an unconditional jump.
func Goto(target int) *ir.Instr {
	return &ir.Instr{Op: ir.OpGoto, Target: &target}
}

// Return is a void return.
func Return() *ir.Instr {
	return &ir.Instr{Op: ir.OpReturn}
}

// FindView is lhs = receiver.findViewById(id).
func FindView(lhs, receiver string, id int64) *ir.Instr {
	return AssignCall(Local(lhs), Call("virtual", Local(receiver), "android.app.Activity",
		"android.view.View", "findViewById", []string{"int"}, Int(id)))
}

// SetContentView is receiver.setContentView(id).
func SetContentView(receiver string, id int64) *ir.Instr {
	return Invoke(Call("virtual", Local(receiver), "android.app.Activity", "void",
		"setContentView", []string{"int"}, Int(id)))
}

// SetText is receiver.setText(arg) on a TextView.
func SetText(receiver *ir.Value, arg *ir.Value) *ir.Instr {
	return Invoke(Call("virtual", receiver, "android.widget.TextView", "void",
		"setText", []string{"java.lang.CharSequence"}, arg))
}

// Method builds a method of class with the given sub-signature, e.g.
// "void onCreate(android.os.Bundle)".
func Method(class, sub string, body ...*ir.Instr) *ir.Method {
	sig := "<" + class + ": " + sub + ">"
	m := &ir.Method{Signature: sig, Class: class, Body: body}
	if ref, err := ir.ParseSignature(sig); err == nil {
		m.Name = ref.Name
	}
	return m
}

// Program groups methods into classes in first-seen order.
func Program(methods ...*ir.Method) *ir.Program {
	p := &ir.Program{}
	byName := make(map[string]*ir.Class)
	for _, m := range methods {
		c, ok := byName[m.Class]
		if !ok {
			c = &ir.Class{Name: m.Class}
			byName[m.Class] = c
			p.Classes = append(p.Classes, c)
		}
		c.Methods = append(c.Methods, m)
	}
	return p
}
