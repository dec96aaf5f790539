// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source for
// @oxy:include annotations and replaces each with the WGSL source registered under that name.
package shader

import (
	"fmt"
	"strings"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// registry maps include names to the WGSL source injected in their place.
	registry map[string]string

	// includes records the names injected during the most recent Process call, in source order.
	includes []string
}

// PreProcessor processes raw WGSL shader source containing @oxy: annotations, replacing them with
// the WGSL they stand for.
type PreProcessor interface {
	// Process replaces every @oxy:include annotation in source with its registered WGSL. A name
	// included more than once is only injected the first time.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or names an unregistered include
	Process(source string) (string, error)

	// Includes returns the include names injected by the most recent call to Process.
	//
	// Returns:
	//   - []string: the injected include names in source order
	Includes() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor resolving includes from registry.
//
// Parameters:
//   - registry: include name to WGSL source; may be nil
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(registry map[string]string) PreProcessor {
	if registry == nil {
		registry = map[string]string{}
	}
	return &preProcessor{registry: registry}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.includes = p.includes[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	seen := make(map[string]bool)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			name := a.Args[0]
			src, ok := p.registry[name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, name)
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, src)
			p.includes = append(p.includes, name)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Includes() []string {
	return p.includes
}
