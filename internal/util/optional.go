package util

import "encoding/json"

// Optional distingue un champ JSON absent d'un champ présent, éventuellement null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON marque le champ comme présent.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Some construit un Optional présent.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}
