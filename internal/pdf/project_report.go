package pdf

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders project reports; an interface so services can fake it.
type Generator interface {
	ProjectReport(data ProjectReportData) ([]byte, error)
}

// ReportGenerator falls back to the core Helvetica font when FontPath is
// empty or missing, which covers Latin-1 text only.
type ReportGenerator struct {
	FontPath string
	fontName string
}

type ReportTask struct {
	ID        int64
	Title     string
	Developer string
	Tester    string
	Status    string
	DueDate   time.Time
}

type ProjectReportData struct {
	ProjectID   int64
	Name        string
	Description string
	Status      string
	Deadline    *time.Time
	TotalTasks  int
	Tasks       []ReportTask
	// BugCounts is keyed by bug status.
	BugCounts   map[string]int
	GeneratedAt time.Time
}

func NewReportGenerator(fontPath string) *ReportGenerator {
	return &ReportGenerator{FontPath: fontPath, fontName: "DejaVu"}
}

func (g *ReportGenerator) ProjectReport(data ProjectReportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Project report #%d", data.ProjectID), true)
	pdf.SetAuthor("TaskFlow", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	font := g.font(pdf)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(font, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(font, "B", 18)
	pdf.CellFormat(0, 10, data.Name, "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 6, "Generated "+data.GeneratedAt.Format("02 Jan 2006 15:04 MST"), "", 1, "C", false, 0, "")
	hr(pdf)

	sectionTitle(pdf, font, "Overview")
	kvLine(pdf, font, "Status", data.Status)
	deadline := "none"
	if data.Deadline != nil {
		deadline = data.Deadline.Format("02 Jan 2006")
	}
	kvLine(pdf, font, "Deadline", deadline)
	kvLine(pdf, font, "Tasks", fmt.Sprintf("%d assigned of %d planned", len(data.Tasks), data.TotalTasks))
	if data.Description != "" {
		pdf.SetFont(font, "", 11)
		pdf.MultiCell(0, 6, data.Description, "", "L", false)
	}
	hr(pdf)

	sectionTitle(pdf, font, "Tasks")
	widths := []float64{12, 54, 34, 34, 20, 16}
	headers := []string{"#", "Title", "Developer", "Tester", "Status", "Due"}
	pdf.SetFont(font, "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(font, "", 9)
	for _, t := range data.Tasks {
		row := []string{
			fmt.Sprintf("%d", t.ID), truncate(pdf, t.Title, widths[1]), truncate(pdf, t.Developer, widths[2]),
			truncate(pdf, t.Tester, widths[3]), t.Status, t.DueDate.Format("02.01"),
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(data.Tasks) == 0 {
		pdf.CellFormat(0, 6, "No tasks yet.", "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	hr(pdf)

	sectionTitle(pdf, font, "Bugs")
	for _, status := range []string{"Pending", "InProgress", "Completed"} {
		kvLine(pdf, font, status, fmt.Sprintf("%d", data.BugCounts[status]))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render project report: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *ReportGenerator) font(pdf *gofpdf.Fpdf) string {
	if g.FontPath == "" {
		return "Helvetica"
	}
	if _, err := os.Stat(g.FontPath); err != nil {
		return "Helvetica"
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	return g.fontName
}

func sectionTitle(pdf *gofpdf.Fpdf, font, s string) {
	pdf.SetFont(font, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
}

func kvLine(pdf *gofpdf.Fpdf, font, key, val string) {
	pdf.SetFont(font, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > limit {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
