package backend

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/advlattice/internal/results"
)

// ParseError reports a verifier report that names no usable claim result.
type ParseError struct {
	Property string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("backend: report for %s: %s", e.Property, e.Reason)
}

// claimStatus is the only element of the report the engine consumes:
//
//	<claim id="P1,claim1" status="Fail" state="complete"/>
type claimStatus struct {
	ID     string `xml:"id,attr"`
	Status string `xml:"status,attr"`
	State  string `xml:"state,attr"`
}

// ParseReport scans an XML report for the claim with the given id and
// ranks it: a failed claim with a complete search is definitely false,
// a passed claim with a bounded search is true within bounds.
func ParseReport(r io.Reader, property string) (results.Verdict, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, &ParseError{Property: property, Reason: err.Error()}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "claim" {
			continue
		}
		var cs claimStatus
		if err := dec.DecodeElement(&cs, &se); err != nil {
			return 0, &ParseError{Property: property, Reason: err.Error()}
		}
		if cs.ID != property {
			continue
		}
		return rank(cs, property)
	}
	return 0, &ParseError{Property: property, Reason: "claim not found"}
}

func rank(cs claimStatus, property string) (results.Verdict, error) {
	var complete bool
	switch strings.ToLower(cs.State) {
	case "complete":
		complete = true
	case "bounded":
	default:
		return 0, &ParseError{Property: property, Reason: fmt.Sprintf("unknown state %q", cs.State)}
	}

	switch strings.ToLower(cs.Status) {
	case "ok":
		if complete {
			return results.TrueDefinite, nil
		}
		return results.TrueBounded, nil
	case "fail":
		if complete {
			return results.FalseDefinite, nil
		}
		return results.FalseBounded, nil
	default:
		return 0, &ParseError{Property: property, Reason: fmt.Sprintf("unknown status %q", cs.Status)}
	}
}
