package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/pressure-cli/internal/config"
	"github.com/sells-group/pressure-cli/internal/model"
)

// WorkbookName is the XLSX file holding one sheet per table.
const WorkbookName = "pressure_analysis.xlsx"

// Writer writes derived tables into an output directory.
type Writer struct {
	dir    string
	format string
}

// NewWriter creates a Writer for dir. format is one of the config.Format*
// values; an empty format writes CSV.
func NewWriter(dir, format string) (*Writer, error) {
	switch format {
	case "":
		format = config.FormatCSV
	case config.FormatCSV, config.FormatXLSX, config.FormatBoth:
	default:
		return nil, eris.Errorf("export: unknown format %q", format)
	}
	return &Writer{dir: dir, format: format}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteTables writes every existing table and returns the file names written,
// relative to the output directory. Table files this run does not produce are
// removed so the directory never mixes tables from different runs.
func (w *Writer) WriteTables(tables *model.Tables) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create dir %s", w.dir)
	}

	sheets := BuildSheets(tables)
	if err := w.removeStale(sheets); err != nil {
		return nil, err
	}
	var files []string

	if w.format == config.FormatCSV || w.format == config.FormatBoth {
		for _, s := range sheets {
			name := s.Name + ".csv"
			if err := writeCSV(filepath.Join(w.dir, name), s); err != nil {
				return files, err
			}
			files = append(files, name)
		}
	}

	if (w.format == config.FormatXLSX || w.format == config.FormatBoth) && len(sheets) > 0 {
		if err := writeWorkbook(filepath.Join(w.dir, WorkbookName), sheets); err != nil {
			return files, err
		}
		files = append(files, WorkbookName)
	}

	zap.L().Info("export: tables written",
		zap.String("dir", w.dir),
		zap.String("format", w.format),
		zap.Strings("files", files),
	)
	return files, nil
}

// removeStale deletes table CSVs and the workbook that the current format and
// sheets will not rewrite.
func (w *Writer) removeStale(sheets []Sheet) error {
	csvOut := w.format == config.FormatCSV || w.format == config.FormatBoth
	bookOut := (w.format == config.FormatXLSX || w.format == config.FormatBoth) && len(sheets) > 0

	written := make(map[string]bool, len(sheets)+1)
	for _, s := range sheets {
		if csvOut {
			written[s.Name+".csv"] = true
		}
	}
	if bookOut {
		written[WorkbookName] = true
	}

	candidates := []string{WorkbookName}
	for _, name := range model.TableNames {
		candidates = append(candidates, name+".csv")
	}
	for _, name := range candidates {
		if written[name] {
			continue
		}
		path := filepath.Join(w.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "export: remove stale %s", path)
		}
	}
	return nil
}

func writeCSV(path string, s Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(s.Header); err != nil {
		return eris.Wrapf(err, "export: write header %s", s.Name)
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return eris.Wrapf(err, "export: write rows %s", s.Name)
	}
	return eris.Wrapf(f.Sync(), "export: sync %s", path)
}

func writeWorkbook(path string, sheets []Sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.Name)
		}
		header := sheet.AddRow()
		for _, h := range s.Header {
			header.AddCell().SetString(h)
		}
		for _, r := range s.Rows {
			row := sheet.AddRow()
			for i, v := range r {
				cell := row.AddCell()
				if s.Numeric[i] {
					if n, err := strconv.ParseFloat(v, 64); err == nil {
						cell.SetFloat(n)
						continue
					}
				}
				cell.SetString(v)
			}
		}
	}
	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}
