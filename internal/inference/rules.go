package inference

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"

	"github.com/kittclouds/memoryd/internal/store"
)

// relatedPredicateDecl is the fixed schema every custom rule must derive into:
// related(FromID, ToID, RelationType, Confidence, Reason).
const relatedPredicateDecl = `Decl related(FromId, ToId, RelationType, Confidence, Reason).`

// runCustomRule compiles rule.Datalog alongside the fixed related/5 schema,
// seeds entity/relationship facts for the live graph (seedEntityFacts),
// evaluates, and reads back every related fact whose FromId equals
// entityID; no $id parameter is bound. A rule whose result schema doesn't
// match related/5, or that fails to parse or evaluate, is skipped by the
// caller (InferAll logs and continues).
func (e *Engine) runCustomRule(ctx context.Context, rule *store.InferenceRule, entityID string) ([]store.InferredRelation, error) {
	source := relatedPredicateDecl + "\n" + rule.Datalog

	unit, err := parse.Unit(bytes.NewReader([]byte(source)))
	if err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", rule.Name, err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze rule %q: %w", rule.Name, err)
	}

	fstore := factstore.NewSimpleInMemoryStore()
	if err := e.seedEntityFacts(fstore); err != nil {
		return nil, fmt.Errorf("seed facts for rule %q: %w", rule.Name, err)
	}

	if _, err := mengine.EvalProgramWithStats(programInfo, fstore); err != nil {
		return nil, fmt.Errorf("eval rule %q: %w", rule.Name, err)
	}

	relatedSym, ok := findPredicate(programInfo, "related", 5)
	if !ok {
		return nil, fmt.Errorf("rule %q never declares related/5", rule.Name)
	}

	var out []store.InferredRelation
	err = fstore.GetFacts(ast.NewQuery(relatedSym), func(atom ast.Atom) error {
		rel, ok := atomToInferredRelation(atom)
		if !ok || rel.FromID != entityID || rel.FromID == rel.ToID {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read related facts for rule %q: %w", rule.Name, err)
	}
	return out, nil
}

// seedEntityFacts populates entity(Id, Type, Name) and relationship(From, To,
// Type) facts so user rules can join against the live graph.
func (e *Engine) seedEntityFacts(fstore factstore.FactStore) error {
	asOf := nowMicros()
	for _, typ := range store.WellKnownEntityTypes {
		entities, err := e.store.ListEntitiesLive(typ, asOf)
		if err != nil {
			return err
		}
		for _, ent := range entities {
			fstore.Add(ast.NewAtom("entity", ast.String(ent.ID), ast.String(ent.Type), ast.String(ent.Name)))
			rels, err := e.store.ListRelationshipsForEntityLive(ent.ID, asOf)
			if err != nil {
				continue
			}
			for _, rel := range rels {
				if rel.FromID != ent.ID {
					continue
				}
				fstore.Add(ast.NewAtom("relationship", ast.String(rel.FromID), ast.String(rel.ToID), ast.String(rel.RelationType)))
			}
		}
	}
	return nil
}

func findPredicate(info *analysis.ProgramInfo, name string, arity int) (ast.PredicateSym, bool) {
	for sym := range info.Decls {
		if sym.Symbol == name && sym.Arity == arity {
			return sym, true
		}
	}
	return ast.PredicateSym{}, false
}

func atomToInferredRelation(atom ast.Atom) (store.InferredRelation, bool) {
	if len(atom.Args) != 5 {
		return store.InferredRelation{}, false
	}
	from, ok1 := constantString(atom.Args[0])
	to, ok2 := constantString(atom.Args[1])
	relType, ok3 := constantString(atom.Args[2])
	if !ok1 || !ok2 || !ok3 {
		return store.InferredRelation{}, false
	}
	confidence := 0.6
	if n, ok := atom.Args[3].(ast.Constant); ok && n.Type == ast.Float64Type {
		confidence = clampConfidence(math.Float64frombits(uint64(n.NumValue)))
	}
	reason := "custom inference rule"
	if r, ok := constantString(atom.Args[4]); ok {
		reason = r
	}
	return store.InferredRelation{FromID: from, ToID: to, RelationType: relType, Confidence: confidence, Reason: reason}, true
}

// clampConfidence keeps a user rule's emitted confidence inside the [0,1]
// range every inferred relation is expected to satisfy, regardless of what
// the Datalog fact actually contained.
func clampConfidence(c float64) float64 {
	return math.Max(0, math.Min(1, c))
}

func constantString(t ast.BaseTerm) (string, bool) {
	c, ok := t.(ast.Constant)
	if !ok {
		return "", false
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol, true
	default:
		return "", false
	}
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}

// ValidateRule parses and analyzes datalog alongside the fixed related/5
// schema, rejecting anything that fails to compile or never derives into
// related/5. Called at InferenceRule insertion time so a broken rule is
// caught long before InferAll silently skips it.
func ValidateRule(datalog string) error {
	source := relatedPredicateDecl + "\n" + datalog
	unit, err := parse.Unit(bytes.NewReader([]byte(source)))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if _, ok := findPredicate(programInfo, "related", 5); !ok {
		return fmt.Errorf("rule never declares related/5")
	}
	for _, clause := range unit.Clauses {
		if clause.Head.Predicate.Symbol == "related" && clause.Head.Predicate.Arity == 5 {
			return nil
		}
	}
	return fmt.Errorf("rule never derives related/5")
}
