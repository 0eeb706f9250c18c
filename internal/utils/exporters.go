package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_DIARIO_INFANTIL_GO/internal/core/logger"
)

// Sheet é uma aba de planilha: cabeçalho e linhas já formatadas.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
	// Widths é a largura por coluna (índice a partir de 0). Colunas ausentes usam a largura padrão.
	Widths map[int]float64
}

// ExportOptions contém opções para a exportação.
type ExportOptions struct {
	CreateBackup bool
	// MaskColumns lista cabeçalhos cujos telefones e emails são mascarados.
	MaskColumns []string
}

var (
	phoneRegex = regexp.MustCompile(`\b\d{2}9?\d{4}\d{4}\b`)
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

const defaultColWidth = 18

func maskString(s string) string {
	s = phoneRegex.ReplaceAllStringFunc(s, func(m string) string {
		return m[:2] + strings.Repeat("*", len(m)-4) + m[len(m)-2:]
	})
	return emailRegex.ReplaceAllString(s, "****@****.***")
}

func maskedColumns(headers, names []string) map[int]bool {
	idx := make(map[int]bool)
	for _, name := range names {
		found := false
		for i, h := range headers {
			if strings.EqualFold(h, name) {
				idx[i] = true
				found = true
				break
			}
		}
		if !found {
			appLogger.Warnf("Coluna para mascarar '%s' não encontrada nos cabeçalhos. Ignorando.", name)
		}
	}
	return idx
}

func cellValue(v interface{}, mask bool) interface{} {
	switch val := v.(type) {
	case nil:
		return ""
	case *string:
		if val == nil {
			return ""
		}
		return cellValue(*val, mask)
	case string:
		if mask {
			return maskString(val)
		}
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val
	case bool:
		if val {
			return "Sim"
		}
		return "Não"
	default:
		return val
	}
}

// ExportToXLSX grava as abas num arquivo XLSX dentro de exportDir (para caminhos relativos).
func ExportToXLSX(sheets []Sheet, outputPath, exportDir string, opts *ExportOptions) (string, error) {
	if len(sheets) == 0 {
		return "", appErrors.NewValidationError("Nada para exportar.", nil)
	}
	if opts == nil {
		opts = &ExportOptions{}
	}
	finalPath := resolveOutputPath(outputPath, exportDir, ".xlsx")
	if opts.CreateBackup && fileExists(finalPath) {
		if err := createBackup(finalPath); err != nil {
			return "", appErrors.WrapErrorf(err, "falha ao criar backup para XLSX")
		}
	}

	xlsx := excelize.NewFile()
	defer func() {
		if err := xlsx.Close(); err != nil {
			appLogger.Errorf("Erro ao fechar arquivo XLSX: %v", err)
		}
	}()

	headerStyle, err := xlsx.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#7C3AED"}, Pattern: 1},
		Font:      &excelize.Font{Color: "FFFFFF", Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao criar estilo do cabeçalho")
	}
	dateStyle, err := xlsx.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao criar estilo de data")
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Planilha%d", i+1)
		}
		// A primeira aba reaproveita a "Sheet1" criada pelo excelize.
		if i == 0 {
			if err := xlsx.SetSheetName(xlsx.GetSheetName(0), name); err != nil {
				return "", appErrors.WrapErrorf(err, "falha ao renomear planilha para '%s'", name)
			}
		} else if _, err := xlsx.NewSheet(name); err != nil {
			return "", appErrors.WrapErrorf(err, "falha ao criar nova planilha '%s'", name)
		}

		for col, h := range sheet.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := xlsx.SetCellValue(name, cell, h); err != nil {
				return "", appErrors.WrapErrorf(err, "falha ao escrever cabeçalho '%s'", h)
			}
			_ = xlsx.SetCellStyle(name, cell, cell, headerStyle)
		}

		masked := maskedColumns(sheet.Headers, opts.MaskColumns)
		for r, row := range sheet.Rows {
			for col, v := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				value := cellValue(v, masked[col])
				if err := xlsx.SetCellValue(name, cell, value); err != nil {
					return "", appErrors.WrapErrorf(err, "falha ao escrever célula %s", cell)
				}
				if _, ok := value.(time.Time); ok {
					_ = xlsx.SetCellStyle(name, cell, cell, dateStyle)
				}
			}
		}

		for col := range sheet.Headers {
			letter, _ := excelize.ColumnNumberToName(col + 1)
			width := float64(defaultColWidth)
			if w, ok := sheet.Widths[col]; ok {
				width = w
			}
			_ = xlsx.SetColWidth(name, letter, letter, width)
		}
	}
	xlsx.SetActiveSheet(0)

	if err := xlsx.SaveAs(finalPath); err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao salvar arquivo XLSX '%s'", finalPath)
	}
	appLogger.Infof("Dados exportados para XLSX: %s", finalPath)
	return finalPath, nil
}

// ExportToCSV grava uma aba em CSV separado por ponto e vírgula.
func ExportToCSV(sheet Sheet, outputPath, exportDir string, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = &ExportOptions{}
	}
	finalPath := resolveOutputPath(outputPath, exportDir, ".csv")
	if opts.CreateBackup && fileExists(finalPath) {
		if err := createBackup(finalPath); err != nil {
			return "", appErrors.WrapErrorf(err, "falha ao criar backup para CSV")
		}
	}

	file, err := os.Create(finalPath)
	if err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao criar arquivo CSV '%s'", finalPath)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	if err := writer.Write(sheet.Headers); err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao escrever cabeçalhos CSV")
	}
	masked := maskedColumns(sheet.Headers, opts.MaskColumns)
	for _, row := range sheet.Rows {
		record := make([]string, len(row))
		for col, v := range row {
			switch val := cellValue(v, masked[col]).(type) {
			case time.Time:
				record[col] = val.Format("02/01/2006")
			default:
				record[col] = fmt.Sprint(val)
			}
		}
		if err := writer.Write(record); err != nil {
			return "", appErrors.WrapErrorf(err, "falha ao escrever linha CSV")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", appErrors.WrapErrorf(err, "falha ao dar flush no writer CSV")
	}
	appLogger.Infof("Dados exportados para CSV: %s", finalPath)
	return finalPath, nil
}

func resolveOutputPath(path, defaultDir, defaultExt string) string {
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) {
		absDefaultDir, _ := filepath.Abs(defaultDir)
		p = filepath.Join(absDefaultDir, p)
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		appLogger.Warnf("Não foi possível criar diretório de exportação '%s': %v. Usando diretório atual.", dir, err)
		p = filepath.Base(p)
	}
	if filepath.Ext(p) == "" {
		p += defaultExt
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func createBackup(path string) error {
	ext := filepath.Ext(path)
	backupPath := fmt.Sprintf("%s_backup_%s%s", strings.TrimSuffix(path, ext), time.Now().Format("20060102_150405"), ext)
	if err := os.Rename(path, backupPath); err != nil {
		return err
	}
	appLogger.Infof("Backup criado: %s", backupPath)
	return nil
}
