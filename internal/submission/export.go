package submission

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/stemsi/exstem-casebook/internal/model"
)

// DefaultFilenameStem is used when the sheet carries no student name.
const DefaultFilenameStem = "student"

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N} ._-]+`)

// Columns orders answer keys for export: student_name first, the rest
// sorted.
func Columns(answers map[string]model.Value) []string {
	cols := make([]string, 0, len(answers))
	for k := range answers {
		if k != "student_name" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	if _, ok := answers["student_name"]; ok {
		cols = append([]string{"student_name"}, cols...)
	}
	return cols
}

// WriteCSV writes one header row and one data row.
func WriteCSV(w io.Writer, answers map[string]model.Value) error {
	cols := Columns(answers)
	row := make([]string, len(cols))
	for i, k := range cols {
		row[i] = answers[k].String()
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the structured answer document.
func WriteJSON(w io.Writer, answers map[string]model.Value) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(answers)
}

// Filename derives the download name from the student name.
func Filename(answers map[string]model.Value, ext string) string {
	stem := ""
	if v, ok := answers["student_name"]; ok {
		stem = strings.TrimSpace(unsafeFilename.ReplaceAllString(v.Text, "_"))
	}
	if stem == "" {
		stem = DefaultFilenameStem
	}
	return stem + "_results." + ext
}
