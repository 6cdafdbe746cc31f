package ir

import (
	"strconv"
	"strings"
)

// String renders the callee in bytecode signature form, e.g.
// "<android.app.Activity: void setContentView(int)>".
func (m MethodRef) String() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(m.Class)
	b.WriteString(": ")
	b.WriteString(m.Return)
	b.WriteByte(' ')
	b.WriteString(m.Name)
	b.WriteByte('(')
	b.WriteString(strings.Join(m.Params, ","))
	b.WriteString(")>")
	return b.String()
}

// SubSignature is the signature without the declaring class, e.g.
// "void start()".
func (m MethodRef) SubSignature() string {
	return m.Return + " " + m.Name + "(" + strings.Join(m.Params, ",") + ")"
}

// String renders a field reference as "<Class: Type name>".
func (f *FieldRef) String() string {
	return "<" + f.Class + ": " + f.Type + " " + f.Name + ">"
}

// String renders the invoke in three-address form.
func (e *InvokeExpr) String() string {
	var b strings.Builder
	kind := e.Kind
	if kind == "" {
		kind = "virtual"
	}
	b.WriteString(kind)
	b.WriteString("invoke ")
	if e.Base != nil {
		b.WriteString(e.Base.String())
		b.WriteByte('.')
	}
	b.WriteString(e.Method.String())
	b.WriteByte('(')
	for i, a := range e.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// String renders the operand.
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindLocal:
		return v.Name
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return `"` + v.Str + `"`
	case KindNull:
		return "null"
	case KindField:
		if v.Field == nil {
			return v.Name
		}
		if v.Base == nil {
			return v.Field.String()
		}
		return v.Base.String() + "." + v.Field.String()
	case KindStaticField:
		if v.Field == nil {
			return v.Name
		}
		return v.Field.String()
	case KindCast:
		return "(" + v.Type + ") " + v.Operand.String()
	case KindNew:
		return "new " + v.Type
	case KindInvoke:
		if v.Invoke == nil {
			return v.Name
		}
		return v.Invoke.String()
	case KindThis:
		return "@this: " + v.Type
	case KindParam:
		return "@parameter" + strconv.FormatInt(v.Int, 10) + ": " + v.Type
	default:
		return v.Name
	}
}

// String renders the instruction the way the front end prints it.
func (i *Instr) String() string {
	if i.Text != "" {
		return i.Text
	}
	switch i.Op {
	case OpAssign:
		return i.LHS.String() + " = " + i.RHS.String()
	case OpIdentity:
		return i.LHS.String() + " := " + i.RHS.String()
	case OpInvoke:
		if i.Invoke == nil {
			return ""
		}
		return i.Invoke.String()
	case OpIf:
		s := "if"
		if i.Cond != nil {
			s += " " + i.Cond.Left.String() + " " + i.Cond.Op + " " + i.Cond.Right.String()
		}
		if i.Target != nil {
			s += " goto " + strconv.Itoa(*i.Target)
		}
		return s
	case OpSwitch:
		var b strings.Builder
		b.WriteString("lookupswitch(")
		b.WriteString(i.Key.String())
		b.WriteString(") {")
		for _, c := range i.Cases {
			b.WriteString(" case ")
			b.WriteString(strconv.FormatInt(c.Value, 10))
			b.WriteString(": goto ")
			b.WriteString(strconv.Itoa(c.Target))
			b.WriteByte(';')
		}
		if i.Default != nil {
			b.WriteString(" default: goto ")
			b.WriteString(strconv.Itoa(*i.Default))
			b.WriteByte(';')
		}
		b.WriteString(" }")
		return b.String()
	case OpGoto:
		if i.Target == nil {
			return "goto"
		}
		return "goto " + strconv.Itoa(*i.Target)
	case OpReturn:
		if i.RHS == nil {
			return "return"
		}
		return "return " + i.RHS.String()
	default:
		return i.RHS.String()
	}
}
