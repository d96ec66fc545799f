package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CoordinationForm carries the fields printed on the coordination-request
// form handed to an approved student for signing.
type CoordinationForm struct {
	StudentName    string
	StudentEmail   string
	ProfessorName  string
	ProfessorEmail string
	SessionTitle   string
	Title          string
	SubmittedAt    time.Time
}

// FormRenderer renders coordination-request forms as PDF documents.
type FormRenderer struct{}

// NewFormRenderer constructs a form renderer.
func NewFormRenderer() *FormRenderer {
	return &FormRenderer{}
}

// Render produces the filled-in form as PDF bytes.
func (r *FormRenderer) Render(form CoordinationForm) ([]byte, error) {
	if form.StudentName == "" || form.ProfessorName == "" {
		return nil, fmt.Errorf("form requires student and professor names")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "DISSERTATION COORDINATION REQUEST", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	rows := [][2]string{
		{"Student", fmt.Sprintf("%s <%s>", form.StudentName, form.StudentEmail)},
		{"Coordinating professor", fmt.Sprintf("%s <%s>", form.ProfessorName, form.ProfessorEmail)},
		{"Registration session", form.SessionTitle},
		{"Dissertation title", form.Title},
		{"Submitted on", form.SubmittedAt.Format("2 January 2006")},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(55, 8, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 8, row[1], "", "", false)
		pdf.Ln(2)
	}

	pdf.Ln(20)
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(85, 8, "Student signature: ______________________", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 8, "Professor signature: ______________________", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render coordination form: %w", err)
	}
	return buf.Bytes(), nil
}
