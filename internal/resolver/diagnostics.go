package resolver

import (
	"fmt"
	"strings"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

const (
	importedHeader    = "These functions, in packages already imported, match the function name:"
	notImportedHeader = "These functions, in packages not imported, match the function name. Add the package to the import section if you want to use them:"
	emptySection      = "(empty)"
)

// argSignature renders call arguments as _:T[m],_:T[m]. Arguments still
// waiting for their context render by expression kind.
func (r *Resolver) argSignature(args []*argument) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.typed {
			parts[i] = "_:" + r.types.SlotString(a.slot.typ, a.slot.mult)
			continue
		}
		parts[i] = "_:" + string(a.node.Kind) + model.One.String()
	}
	return strings.Join(parts, ",")
}

func (r *Resolver) unmatched(name string, args []*argument, cs candidateSet, pos *graph.SourceInformation) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The system can't find a match for the function: %s(%s)", name, r.argSignature(args))
	if r.opts.RichDiagnostics {
		r.section(&sb, importedHeader, cs.imported)
		r.section(&sb, notImportedHeader, cs.notImported)
	}
	return diag.New(diag.UnmatchedFunction, pos, sb.String())
}

func (r *Resolver) section(sb *strings.Builder, header string, sigs []model.Signature) {
	sb.WriteString("\n")
	sb.WriteString(header)
	if len(sigs) == 0 {
		sb.WriteString("\n\t" + emptySection)
		return
	}
	for _, s := range sigs {
		sb.WriteString("\n\t")
		sb.WriteString(r.types.SignatureString(s))
	}
}

func (r *Resolver) tooMany(name string, args []*argument, tied []*attempt, pos *graph.SourceInformation) error {
	sigs := make([]model.Signature, len(tied))
	for i, a := range tied {
		sigs[i] = a.sig
	}
	r.sortSignatures(sigs)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Too many matches for %s(%s):", name, r.argSignature(args))
	for _, s := range sigs {
		sb.WriteString("\n\t")
		sb.WriteString(r.types.SignatureString(s))
	}
	return diag.New(diag.TooManyMatches, pos, sb.String())
}

func (r *Resolver) conflict(sig model.Signature, index int, got, want slot, pos *graph.SourceInformation) error {
	return diag.Newf(diag.InferenceConflict, pos,
		"Inference conflict in %s: the function passed as parameter %d returns %s but %s is required",
		r.types.SignatureString(sig), index+1,
		r.types.SlotString(got.typ, got.mult), r.types.SlotString(want.typ, want.mult))
}
