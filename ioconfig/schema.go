package ioconfig

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// FieldSpec declares one schema field in configuration files and tickets.
//
// Type names: bool, int8, int16, int32, int64, uint8, uint16, uint32, uint64,
// float32, float64, string, large_string, binary, date32, timestamp,
// decimal and struct.
type FieldSpec struct {
	Name     string `mapstructure:"name" msgpack:"name" yaml:"name"`
	Type     string `mapstructure:"type" msgpack:"type" yaml:"type"`
	Nullable *bool  `mapstructure:"nullable" msgpack:"nullable,omitempty" yaml:"nullable,omitempty"`

	// Decimal only.
	Precision int32 `mapstructure:"precision" msgpack:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     int32 `mapstructure:"scale" msgpack:"scale,omitempty" yaml:"scale,omitempty"`

	// Timestamp only. Unit is s, ms, us or ns (default us).
	Unit     string `mapstructure:"unit" msgpack:"unit,omitempty" yaml:"unit,omitempty"`
	TimeZone string `mapstructure:"timezone" msgpack:"timezone,omitempty" yaml:"timezone,omitempty"`

	// Struct only.
	Fields []FieldSpec `mapstructure:"fields" msgpack:"fields,omitempty" yaml:"fields,omitempty"`
}

var primitiveTypes = map[string]arrow.DataType{
	"bool":         arrow.FixedWidthTypes.Boolean,
	"int8":         arrow.PrimitiveTypes.Int8,
	"int16":        arrow.PrimitiveTypes.Int16,
	"int32":        arrow.PrimitiveTypes.Int32,
	"int64":        arrow.PrimitiveTypes.Int64,
	"uint8":        arrow.PrimitiveTypes.Uint8,
	"uint16":       arrow.PrimitiveTypes.Uint16,
	"uint32":       arrow.PrimitiveTypes.Uint32,
	"uint64":       arrow.PrimitiveTypes.Uint64,
	"float32":      arrow.PrimitiveTypes.Float32,
	"float64":      arrow.PrimitiveTypes.Float64,
	"string":       arrow.BinaryTypes.String,
	"large_string": arrow.BinaryTypes.LargeString,
	"binary":       arrow.BinaryTypes.Binary,
	"date32":       arrow.FixedWidthTypes.Date32,
}

var timeUnits = map[string]arrow.TimeUnit{
	"s":  arrow.Second,
	"ms": arrow.Millisecond,
	"us": arrow.Microsecond,
	"ns": arrow.Nanosecond,
}

// ToArrow converts field declarations to an Arrow schema.
func ToArrow(specs []FieldSpec) (*arrow.Schema, error) {
	fields, err := toFields(specs, "")
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

func toFields(specs []FieldSpec, prefix string) ([]arrow.Field, error) {
	fields := make([]arrow.Field, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		path := prefix + spec.Name
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: field name cannot be empty (in %q)", ErrInvalidConfig, prefix)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidConfig, path)
		}
		seen[spec.Name] = true

		dt, err := toType(spec, path)
		if err != nil {
			return nil, err
		}
		nullable := true
		if spec.Nullable != nil {
			nullable = *spec.Nullable
		}
		fields = append(fields, arrow.Field{Name: spec.Name, Type: dt, Nullable: nullable})
	}
	return fields, nil
}

func toType(spec FieldSpec, path string) (arrow.DataType, error) {
	name := strings.ToLower(spec.Type)
	if dt, ok := primitiveTypes[name]; ok {
		return dt, nil
	}

	switch name {
	case "decimal", "decimal128":
		if spec.Precision < 1 || spec.Precision > 38 || spec.Scale < 0 || spec.Scale > spec.Precision {
			return nil, fmt.Errorf("%w: field %q: invalid decimal(%d,%d)", ErrInvalidConfig, path, spec.Precision, spec.Scale)
		}
		return &arrow.Decimal128Type{Precision: spec.Precision, Scale: spec.Scale}, nil

	case "timestamp":
		unit := arrow.Microsecond
		if spec.Unit != "" {
			u, ok := timeUnits[strings.ToLower(spec.Unit)]
			if !ok {
				return nil, fmt.Errorf("%w: field %q: unknown time unit %q", ErrInvalidConfig, path, spec.Unit)
			}
			unit = u
		}
		return &arrow.TimestampType{Unit: unit, TimeZone: spec.TimeZone}, nil

	case "struct":
		if len(spec.Fields) == 0 {
			return nil, fmt.Errorf("%w: struct field %q has no children", ErrInvalidConfig, path)
		}
		children, err := toFields(spec.Fields, path+".")
		if err != nil {
			return nil, err
		}
		return arrow.StructOf(children...), nil
	}
	return nil, fmt.Errorf("%w: field %q: unsupported type %q", ErrInvalidConfig, path, spec.Type)
}

// FromArrow converts an Arrow schema to field declarations.
func FromArrow(schema *arrow.Schema) ([]FieldSpec, error) {
	return fromFields(schema.Fields())
}

func fromFields(fields []arrow.Field) ([]FieldSpec, error) {
	specs := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		nullable := f.Nullable
		spec := FieldSpec{Name: f.Name, Nullable: &nullable}

		switch dt := f.Type.(type) {
		case *arrow.Decimal128Type:
			spec.Type, spec.Precision, spec.Scale = "decimal", dt.Precision, dt.Scale
		case *arrow.TimestampType:
			spec.Type, spec.TimeZone = "timestamp", dt.TimeZone
			for name, unit := range timeUnits {
				if unit == dt.Unit {
					spec.Unit = name
				}
			}
		case *arrow.StructType:
			children, err := fromFields(dt.Fields())
			if err != nil {
				return nil, err
			}
			spec.Type, spec.Fields = "struct", children
		default:
			for name, prim := range primitiveTypes {
				if arrow.TypeEqual(prim, f.Type) {
					spec.Type = name
					break
				}
			}
			if spec.Type == "" {
				return nil, fmt.Errorf("field %q: type %s has no declaration form", f.Name, f.Type)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
