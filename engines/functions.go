package engines

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

var ErrInvalidParameterSchema = fmt.Errorf("function parameters must be an object schema")

// ReflectFunctionSpecs derives the parameter schema of a function from the
// struct its arguments decode into. Field descriptions and enums come from
// `jsonschema` struct tags.
func ReflectFunctionSpecs(name, description string, args any) (FunctionSpecs, error) {
	argsType := reflect.TypeOf(args)
	for argsType != nil && argsType.Kind() == reflect.Pointer {
		argsType = argsType.Elem()
	}
	// the reflector expands named structs only
	if argsType == nil || argsType.Kind() != reflect.Struct || argsType.Name() == "" {
		return FunctionSpecs{}, fmt.Errorf("%w: %s takes %v", ErrInvalidParameterSchema, name, argsType)
	}
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(args)
	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return FunctionSpecs{}, fmt.Errorf("failed to marshal schema of %s: %w", name, err)
	}
	var params ParameterSpecs
	if err := json.Unmarshal(rawSchema, &params); err != nil {
		return FunctionSpecs{}, fmt.Errorf("failed to convert schema of %s: %w", name, err)
	}
	if params.Type != "object" {
		return FunctionSpecs{}, fmt.Errorf("%w: %s has type %q", ErrInvalidParameterSchema, name, params.Type)
	}
	return FunctionSpecs{
		Name:        name,
		Description: description,
		Parameters:  &params,
	}, nil
}

// ParseFunctions reads a list of function definitions written in YAML or
// JSON. A function without parameters takes none.
func ParseFunctions(data []byte) ([]FunctionSpecs, error) {
	var specs []FunctionSpecs
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("invalid function definitions: %w", err)
	}
	for i, fn := range specs {
		if fn.Name == "" {
			return nil, fmt.Errorf("function %d has no name", i)
		}
		if fn.Parameters == nil {
			specs[i].Parameters = &ParameterSpecs{Type: "object", Properties: map[string]*ParameterSpecs{}}
			continue
		}
		if fn.Parameters.Type != "object" {
			return nil, fmt.Errorf("%w: %s has type %q", ErrInvalidParameterSchema, fn.Name, fn.Parameters.Type)
		}
	}
	return specs, nil
}

func LoadFunctions(path string) ([]FunctionSpecs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read function definitions: %w", err)
	}
	return ParseFunctions(data)
}
