// annotations.go defines the annotation syntax understood by the Oxy WGSL shader pre-processor.
// Annotations are single-line WGSL comments prefixed with @oxy: that inject shared WGSL struct
// definitions into a shader before it is reflected and compiled, so that every kernel sharing a
// uniform block declares it byte-for-byte identically.
package shader

import (
	"fmt"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source registered under the given name at the annotation site.
	//
	// Syntax: //@oxy:include <name>
	//
	// Example: //@oxy:include sim_params
	AnnotationTypeInclude AnnotationType = "include"
)

// Annotation is a single parsed @oxy: directive.
type Annotation struct {
	// Type is the directive kind.
	Type AnnotationType
	// Args holds the whitespace separated arguments following the directive kind.
	Args []string
	// Line is the 1-based source line the annotation was found on.
	Line int
}

// parseAnnotation attempts to parse a single WGSL source line as an @oxy: annotation.
// Lines that are not comments, or comments without the annotation prefix, return (nil, nil).
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number, used in error messages
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: an error if the line is a malformed annotation
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	comment, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	_, after, ok := strings.Cut(comment, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: args[1:],
			Line: lineNum,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
	}
}
