package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type holidayEntry struct {
	Date  string `yaml:"date"`
	Label string `yaml:"label"`
}

// DecodeHolidays lit une liste YAML d'entrées {date, label}; label est optionnel.
func DecodeHolidays(r io.Reader) ([]JourFerie, error) {
	var entries []holidayEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("yaml: %w", err)
	}

	out := make([]JourFerie, 0, len(entries))
	for i, e := range entries {
		date := strings.TrimSpace(e.Date)
		if date == "" {
			return nil, fmt.Errorf("entrée %d: date obligatoire", i+1)
		}
		item := JourFerie{Date: date}
		if label := strings.TrimSpace(e.Label); label != "" {
			item.Label = &label
		}
		out = append(out, item)
	}
	return out, nil
}
