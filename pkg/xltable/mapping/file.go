package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"gopkg.in/yaml.v3"
)

// File is a mapping declaration file.
//
//	table: Orders
//	verbose: true
//	columns:
//	  - source: Order ID
//	    field: order_id
//	    type: int32
//	    blank_as_null: true
type File struct {
	Table   string   `yaml:"table" validate:"required"`
	Verbose bool     `yaml:"verbose"`
	Columns []Column `yaml:"columns" validate:"required,min=1,dive"`
}

// Column declares one mapping. BlankAsNull defaults to true.
type Column struct {
	Source      string `yaml:"source" validate:"required"`
	Field       string `yaml:"field" validate:"required"`
	Type        string `yaml:"type" validate:"required,datatype"`
	BlankAsNull *bool  `yaml:"blank_as_null"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("datatype", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDataType(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadFile reads and validates a mapping file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a mapping declaration.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode mapping file: %w", err)
	}

	if err := validate.Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
			}
			return nil, errors.Join(msgs...)
		}
		return nil, err
	}

	return &f, nil
}

// Registry builds the mapping registry declared by the file.
func (f *File) Registry() *Registry {
	r := &Registry{}
	for _, c := range f.Columns {
		dt, _ := models.ParseDataType(c.Type)
		blankAsNull := true
		if c.BlankAsNull != nil {
			blankAsNull = *c.BlankAsNull
		}
		r.Map(c.Source, c.Field, dt, blankAsNull)
	}
	return r
}
