// Package compiler turns CUE schema descriptors into ir.Schema values.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pksplit/internal/ir"
)

// CompileSchema parses a CUE value into a record schema descriptor.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the schema struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`schema: { keyspace: "s3", table: "chunk", ... }`)
//	s, err := CompileSchema(v.LookupPath(cue.ParsePath("schema")))
//
// Key columns are either plain names or structs with a name and an optional
// type:
//
//	partition_key: ["bucket", {name: "object_id", type: "text"}]
func CompileSchema(v cue.Value) (ir.Schema, error) {
	if err := v.Err(); err != nil {
		return ir.Schema{}, formatCUEError(err)
	}

	var s ir.Schema
	var err error
	if s.Keyspace, err = requiredString(v, "keyspace"); err != nil {
		return ir.Schema{}, err
	}
	if s.Table, err = requiredString(v, "table"); err != nil {
		return ir.Schema{}, err
	}

	pkVal := v.LookupPath(cue.ParsePath("partition_key"))
	if !pkVal.Exists() {
		return ir.Schema{}, &CompileError{
			Field:   "partition_key",
			Message: "partition_key is required",
			Pos:     v.Pos(),
		}
	}
	if s.PartitionKey, err = parseColumns("partition_key", pkVal); err != nil {
		return ir.Schema{}, err
	}

	// clustering_key is optional
	ckVal := v.LookupPath(cue.ParsePath("clustering_key"))
	if ckVal.Exists() {
		if s.ClusteringKey, err = parseColumns("clustering_key", ckVal); err != nil {
			return ir.Schema{}, err
		}
	}

	if err := s.Validate(); err != nil {
		return ir.Schema{}, &CompileError{Field: "schema", Message: err.Error(), Pos: v.Pos()}
	}
	return s, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

// parseColumns parses a list of key columns.
func parseColumns(field string, v cue.Value) ([]ir.Column, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a list of column names or {name, type} structs",
			Pos:     v.Pos(),
		}
	}

	var cols []ir.Column
	for i := 0; iter.Next(); i++ {
		col, err := parseColumn(fmt.Sprintf("%s[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// parseColumn parses a single column, given as a string or a struct.
func parseColumn(field string, v cue.Value) (ir.Column, error) {
	if name, err := v.String(); err == nil {
		if name == "" {
			return ir.Column{}, &CompileError{Field: field, Message: "column name must not be empty", Pos: v.Pos()}
		}
		return ir.Column{Name: name}, nil
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return ir.Column{}, &CompileError{
			Field:   field,
			Message: "must be a string or a struct with a name field",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return ir.Column{}, formatCUEError(err)
	}
	if name == "" {
		return ir.Column{}, &CompileError{Field: field + ".name", Message: "column name must not be empty", Pos: nameVal.Pos()}
	}
	col := ir.Column{Name: name}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		if col.Type, err = typeVal.String(); err != nil {
			return ir.Column{}, formatCUEError(err)
		}
	}
	return col, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
