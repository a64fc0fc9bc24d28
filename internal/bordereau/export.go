package bordereau

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sante-travail/convocations/internal/convocation"
)

const exportSheet = "Bordereau"

var exportHeader = []string{"Nom", "Prénom", "Poste", "Date prévue", "Type", "Statut"}

// Export rend le bordereau en classeur XLSX et propose un nom de fichier.
func (s *Service) Export(ctx context.Context, id string) ([]byte, string, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.render(b)
	if err != nil {
		return nil, "", err
	}
	return data, b.SerialNumber + ".xlsx", nil
}

func (s *Service) render(b Bordereau) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("feuille: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("style: %w", err)
	}

	service := b.ServiceID
	if b.Service != nil {
		service = b.Service.Libelle
	}
	meta := [][2]string{
		{"Bordereau", b.SerialNumber},
		{"Service", service},
		{"Date d'édition", b.DateEdition.In(s.loc).Format("02/01/2006")},
		{"Statut", b.Statut},
	}
	for i, kv := range meta {
		row := i + 1
		if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &[]any{kv[0], kv[1]}); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(exportSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold); err != nil {
			return nil, err
		}
	}

	headerRow := len(meta) + 2
	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	start := fmt.Sprintf("A%d", headerRow)
	if err := f.SetSheetRow(exportSheet, start, &header); err != nil {
		return nil, err
	}
	end, _ := excelize.CoordinatesToCellName(len(exportHeader), headerRow)
	if err := f.SetCellStyle(exportSheet, start, end, headerStyle); err != nil {
		return nil, err
	}

	for i, c := range b.Convocations {
		row := s.exportRow(c)
		if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", headerRow+1+i), &row); err != nil {
			return nil, err
		}
	}

	for col, width := range []float64{22, 22, 24, 18, 14, 24} {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(exportSheet, name, name, width); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("écriture xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) exportRow(c convocation.Convocation) []any {
	var nom, prenom, poste string
	if p := c.Personnel; p != nil {
		nom, prenom = p.LastName, p.FirstName
		if p.Poste != nil {
			poste = p.Poste.Libelle
		}
	}
	return []any{nom, prenom, poste, c.DatePrevue.In(s.loc).Format("02/01/2006 15:04"), c.ConvocationType, c.Statut}
}
