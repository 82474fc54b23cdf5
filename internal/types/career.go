// Package types provides type definitions for structured data used throughout the course crawler.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// Career identifies one academic program type ("career") whose course listing is fetched independently.
// The set of careers is closed; use the exported constants or ParseCareer.
type Career string

const (
	// CareerUndergraduate is the bachelor program.
	CareerUndergraduate Career = "U"
	// CareerGeneralEducation covers general education and physical education courses.
	CareerGeneralEducation Career = "O"
	// CareerContinuing is the continuing education division.
	CareerContinuing Career = "N"
	// CareerInService is the in-service (executive) master program.
	CareerInService Career = "W"
	// CareerMaster is the master program.
	CareerMaster Career = "G"
	// CareerDoctoral is the doctoral program.
	CareerDoctoral Career = "D"
)

// careers holds the fixed enumeration order.
var careers = []Career{
	CareerUndergraduate,
	CareerGeneralEducation,
	CareerContinuing,
	CareerInService,
	CareerMaster,
	CareerDoctoral,
}

var careerLabels = map[Career]string{
	CareerUndergraduate:    "學士班",
	CareerGeneralEducation: "通識加體育課",
	CareerContinuing:       "進修部",
	CareerInService:        "在職專班",
	CareerMaster:           "碩士班",
	CareerDoctoral:         "博士班",
}

// AllCareers returns every career in enumeration order.
// The returned slice is a copy and may be modified by the caller.
func AllCareers() []Career {
	out := make([]Career, len(careers))
	copy(out, careers)
	return out
}

// ParseCareer converts a code such as "U" or "g" into a Career.
func ParseCareer(code string) (Career, error) {
	c := Career(strings.ToUpper(strings.TrimSpace(code)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown career code %q", code)
	}
	return c, nil
}

// Valid reports whether c is one of the enumerated careers.
func (c Career) Valid() bool {
	_, ok := careerLabels[c]
	return ok
}

// Code returns the code sent to the remote endpoint.
func (c Career) Code() string {
	return string(c)
}

// Label returns the human-readable program name.
// Unknown careers fall back to their code.
func (c Career) Label() string {
	if label, ok := careerLabels[c]; ok {
		return label
	}
	return string(c)
}

// String returns the string representation of the Career.
func (c Career) String() string {
	return string(c)
}

// ArchiveTag marks why a raw payload was archived.
type ArchiveTag string

// ArchiveTagFailed is attached to payloads the recovery pipeline could not parse.
const ArchiveTagFailed ArchiveTag = "failed"

// String returns the string representation of the ArchiveTag.
func (t ArchiveTag) String() string {
	return string(t)
}
