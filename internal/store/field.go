package store

import "encoding/json"

// Field is a patch value that tells "absent" apart from an explicit null.
//
//	Set=false             field not present, leave as is
//	Set=true, Valid=false explicit null, clear
//	Set=true, Valid=true  assign Value
type Field[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func Some[T any](v T) Field[T] { return Field[T]{Set: true, Valid: true, Value: v} }

func Null[T any]() Field[T] { return Field[T]{Set: true} }

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		f.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

// Ptr returns the value as a pointer, nil when null.
func (f Field[T]) Ptr() *T {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
