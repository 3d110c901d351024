package query

import (
	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/storage"
	"github.com/hupe1980/seqdb/symbol"
)

// Simplify rewrites e bottom-up for evaluation against one partition. The
// rewrite is pure and semantics-preserving per partition: it folds partition
// knowledge (absent lineages, flipped position bitmaps) and normalizes the
// boolean structure (Neg promotion into And, absorption, short circuits).
// Because flipped symbols differ between partitions, a simplified tree must
// only ever be evaluated against the partition it was simplified for.
func Simplify(e Expr, p *storage.Partition) Expr {
	switch e := e.(type) {
	case Empty, Full, *DateBetween, *StrEq:
		return e

	case *Neg:
		child := Simplify(e.Child, p)
		if inner, ok := child.(*Neg); ok {
			return inner.Child
		}
		return &Neg{Child: child}

	case *NucEq:
		if p.Seq.FlippedAt(e.Pos) == e.Sym {
			// The stored bitmap is the complement; surface a Neg so the
			// surrounding algebra can consume it with andnot.
			return &Neg{Child: &NucEq{Pos: e.Pos, Sym: e.Sym, flipped: true}}
		}
		return &NucEq{Pos: e.Pos, Sym: e.Sym}

	case *NucMaybe:
		if f := p.Seq.FlippedAt(e.Pos); f != symbol.None && e.Sym.Represents(f) {
			return &Neg{Child: &NucMaybe{Pos: e.Pos, Sym: e.Sym, negated: true}}
		}
		return &NucMaybe{Pos: e.Pos, Sym: e.Sym}

	case *Lineage:
		if e.ID == dict.NotFound {
			return Empty{}
		}
		if !e.IncludeSub && !p.HasLineage(e.ID) {
			return Empty{}
		}
		return &Lineage{ID: e.ID, IncludeSub: e.IncludeSub}

	case *Country:
		if e.ID == dict.NotFound {
			return Empty{}
		}
		return e

	case *Region:
		if e.ID == dict.NotFound {
			return Empty{}
		}
		return e

	case *And:
		return simplifyAnd(e, p)

	case *Or:
		return simplifyOr(e, p)

	case *NOf:
		return simplifyNOf(e, p)

	default:
		return e
	}
}

func simplifyAnd(e *And, p *storage.Partition) Expr {
	res := &And{}

	var add func(child Expr) bool // false on EMPTY short circuit
	add = func(child Expr) bool {
		switch child := child.(type) {
		case Empty:
			return false
		case Full:
			// neutral element
		case *And:
			for _, c := range child.Children {
				if !add(c) {
					return false
				}
			}
			res.Negated = append(res.Negated, child.Negated...)
		case *Neg:
			res.Negated = append(res.Negated, child.Child)
		default:
			res.Children = append(res.Children, child)
		}
		return true
	}

	for _, c := range e.Children {
		if !add(Simplify(c, p)) {
			return Empty{}
		}
	}
	for _, c := range e.Negated {
		// Already-negated children re-simplify in positive form.
		switch sc := Simplify(c, p).(type) {
		case Full:
			return Empty{}
		case Empty:
		case *Neg:
			if !add(sc.Child) {
				return Empty{}
			}
		default:
			res.Negated = append(res.Negated, sc)
		}
	}

	if len(res.Children) == 0 && len(res.Negated) == 0 {
		return Full{}
	}
	return res
}

func simplifyOr(e *Or, p *storage.Partition) Expr {
	res := &Or{}
	for _, c := range e.Children {
		switch sc := Simplify(c, p).(type) {
		case Full:
			return Full{}
		case Empty:
		case *Or:
			res.Children = append(res.Children, sc.Children...)
		default:
			res.Children = append(res.Children, sc)
		}
	}
	if len(res.Children) == 0 {
		return Empty{}
	}
	return res
}

func simplifyNOf(e *NOf, p *storage.Partition) Expr {
	children := make([]Expr, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, Simplify(c, p))
	}

	if e.N == 0 {
		if e.Exactly {
			return Simplify(&Neg{Child: &Or{Children: e.Children}}, p)
		}
		return Full{}
	}
	if e.N > len(children) {
		return Empty{}
	}
	return &NOf{Children: children, N: e.N, Exactly: e.Exactly, Impl: e.Impl}
}
