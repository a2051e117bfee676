/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"scriptbreakdown/internal/domain"
	applog "scriptbreakdown/internal/log"
)

// PDFOptions controls PDF export behavior.
// Units are millimetres. Core Helvetica is used so no fonts are embedded;
// text is translated to cp1252 on the way in.
type PDFOptions struct {
	PageSize    string   // "Letter" (default) or "A4"
	Title       string   // defaults to the script title
	Scenes      []string // scene numbers to print; empty means all
	IncludeCast bool     // append a cast page with importance and relationships
}

type rgb struct{ R, G, B int }

var (
	headerFill = rgb{230, 230, 230}
	ruleColor  = rgb{120, 120, 120}
)

// sheetTypes are the element rows printed on each scene sheet, in order.
var sheetTypes = []domain.ElementType{
	domain.ElementProp, domain.ElementVehicle, domain.ElementWardrobe, domain.ElementSpecialEffect,
}

// WritePDF writes a summary page followed by one breakdown sheet per scene.
func WritePDF(outPath string, r Report, opt PDFOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "pdf").With(slog.String("out", outPath))
	if strings.TrimSpace(outPath) == "" {
		return fmt.Errorf("output path is required")
	}
	size := opt.PageSize
	if size == "" {
		size = "Letter"
	}
	title := opt.Title
	if title == "" {
		title = r.Script.Title
	}

	pdf := gofpdf.New("P", "mm", size, "")
	pdf.SetTitle(title+" - Breakdown", true)
	pdf.SetAuthor(r.Script.Author, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s  |  page %d", title, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	summaryPage(pdf, tr, title, r)
	scenes := selectScenes(r.Scenes, opt.Scenes)
	for _, st := range scenes {
		sceneSheet(pdf, tr, r, st)
	}
	if opt.IncludeCast && len(r.Characters) > 0 {
		castPage(pdf, tr, r)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	l.Info("breakdown pdf written", slog.Int("scenes", len(scenes)))
	return nil
}

func selectScenes(all []domain.StoredScene, numbers []string) []domain.StoredScene {
	if len(numbers) == 0 {
		return all
	}
	want := map[string]bool{}
	for _, n := range numbers {
		want[strings.TrimSpace(n)] = true
	}
	var out []domain.StoredScene
	for _, st := range all {
		if want[st.Scene.SceneNumber] {
			out = append(out, st)
		}
	}
	return out
}

func setFillColor(pdf *gofpdf.Fpdf, c rgb) { pdf.SetFillColor(c.R, c.G, c.B) }

func setDrawColor(pdf *gofpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.R, c.G, c.B) }

func heading(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(text), "", "L", false)
	setDrawColor(pdf, ruleColor)
	pdf.SetLineWidth(0.3)
	y := pdf.GetY() + 1
	left, _, right, _ := pdf.GetMargins()
	w, _ := pdf.GetPageSize()
	pdf.Line(left, y, w-right, y)
	pdf.Ln(4)
}

// row prints a label cell and a wrapping value cell.
func row(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	const labelW = 45.0
	pdf.SetFont("Helvetica", "B", 10)
	setFillColor(pdf, headerFill)
	x, y := pdf.GetXY()
	pdf.CellFormat(labelW, 6, tr(label), "1", 0, "L", true, 0, "")
	pdf.SetXY(x+labelW, y)
	pdf.SetFont("Helvetica", "", 10)
	if value == "" {
		value = "-"
	}
	pdf.MultiCell(0, 6, tr(value), "1", "L", false)
}

func summaryPage(pdf *gofpdf.Fpdf, tr func(string) string, title string, r Report) {
	pdf.AddPage()
	heading(pdf, tr, title)
	b := r.Breakdown
	row(pdf, tr, "Author", r.Script.Author)
	row(pdf, tr, "Production", r.Script.ProductionID)
	row(pdf, tr, "Format", string(r.Script.Format))
	status := "complete"
	switch {
	case b.Failed():
		status = "failed: " + b.ErrorMessage()
	case !b.IsComplete:
		status = fmt.Sprintf("in progress (%.0f%%)", b.Progress*100)
	}
	row(pdf, tr, "Status", status)
	row(pdf, tr, "Scenes", fmt.Sprintf("%d", b.SceneCount))
	row(pdf, tr, "Pages", fmt.Sprintf("%d", b.PageCount))
	row(pdf, tr, "Estimated duration", fmt.Sprintf("%.1f min", b.EstimatedDuration))
	row(pdf, tr, "Characters", fmt.Sprintf("%d", len(r.Characters)))

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr("Elements by type"), "", 1, "L", false, 0, "")
	types := make([]string, 0, len(b.ElementsByType))
	for t := range b.ElementsByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		row(pdf, tr, t, fmt.Sprintf("%d", b.ElementsByType[domain.ElementType(t)]))
	}
}

func sceneSheet(pdf *gofpdf.Fpdf, tr func(string) string, r Report, st domain.StoredScene) {
	s := st.Scene
	pdf.AddPage()
	heading(pdf, tr, fmt.Sprintf("Scene %s: %s", s.SceneNumber, s.SlugLine))
	row(pdf, tr, "Int/Ext", string(s.IntExt))
	row(pdf, tr, "Location", s.LocationName())
	row(pdf, tr, "Time of day", s.TimeOfDayName())
	row(pdf, tr, "Page", fmt.Sprintf("%d", s.PageNumber))
	row(pdf, tr, "Characters", strings.Join(s.Characters, ", "))
	if a := st.Analysis; a != nil {
		row(pdf, tr, "Complexity", fmt.Sprintf("%.2f", a.ComplexityScore))
		row(pdf, tr, "Duration estimate", fmt.Sprintf("%.1f min", a.DurationEstimate))
		row(pdf, tr, "Sentiment", a.OverallSentiment)
	}
	for _, t := range sheetTypes {
		row(pdf, tr, strings.ReplaceAll(strings.ToUpper(string(t)), "_", " "), strings.Join(r.ElementsIn(t, s.SceneNumber), ", "))
	}
	if a := st.Analysis; a != nil && len(a.KeyActions) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, tr("Key actions"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, act := range a.KeyActions {
			pdf.MultiCell(0, 5, tr("- "+act), "", "L", false)
		}
	}
}

func castPage(pdf *gofpdf.Fpdf, tr func(string) string, r Report) {
	pdf.AddPage()
	heading(pdf, tr, "Cast")
	for _, c := range r.Characters {
		summary := fmt.Sprintf("%d lines, %d words, %d scenes", c.Character.DialogueCount, c.Character.WordCount, len(c.Character.Scenes))
		if a := c.Analysis; a != nil {
			summary += fmt.Sprintf(", importance %.2f", a.ImportanceScore)
			if a.Arc.Description != nil {
				summary += ". " + *a.Arc.Description
			}
		}
		row(pdf, tr, c.Character.Name, summary)
	}
}
