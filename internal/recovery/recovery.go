// Package recovery turns possibly corrupted course listing payloads into validated JSON documents.
//
// Stages run in a fixed order: control character normalization, boundary trimming, syntactic
// repair, a strict primary parse, and a rescue parse of the first {...} span when the primary
// parse fails. A terminal failure carries the caller's original text for archival.
//
// A Pipeline holds no mutable state and is safe for concurrent use.
package recovery

// Pipeline applies the recovery stages with a fixed set of repair passes.
type Pipeline struct {
	repairer *Repairer
}

// New creates a Pipeline. With no passes it uses DefaultPasses.
func New(passes ...Pass) *Pipeline {
	return &Pipeline{repairer: NewRepairer(passes...)}
}

var defaultPipeline = New()

// Recover runs raw through the default pipeline.
func Recover(raw string) (*Document, error) {
	return defaultPipeline.Recover(raw)
}

// Recover converts raw into a Document.
// On failure the returned error is a *Error whose Raw field equals raw byte for byte.
func (p *Pipeline) Recover(raw string) (*Document, error) {
	normalized := NormalizeControl(raw)

	bounded, found := TrimToBoundary(normalized)
	if !found {
		return nil, &Error{Reason: ReasonBoundaryNotFound, Raw: raw}
	}

	repaired, repairs := p.repairer.Repair(bounded)
	doc, primaryErr := parseDocument(repaired)
	if primaryErr == nil {
		doc.Stage = StagePrimary
		doc.Repairs = repairs
		return doc, nil
	}

	// Rescue re-derives its window from the unrepaired text.
	candidate, ok := RescueCandidate(bounded)
	if !ok {
		return nil, &Error{Reason: ReasonPrimaryParse, Raw: raw, Cause: primaryErr}
	}

	doc, rescueErr := parseDocument(candidate)
	if rescueErr != nil {
		return nil, &Error{Reason: ReasonRescueParse, Raw: raw, Cause: rescueErr}
	}
	doc.Stage = StageRescue
	doc.PrimaryErr = primaryErr
	return doc, nil
}
